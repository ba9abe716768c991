package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account types.
const (
	AccountChecking   = "checking"
	AccountSavings    = "savings"
	AccountWallet     = "wallet"
	AccountInvestment = "investment"
)

// Account represents a bank/wallet/investment bucket owned by a user.
// Balance is a cached running total, maintained only by the ledger
// service and the bank balance probe.
type Account struct {
	ID        uint            `gorm:"primaryKey"`
	UserID    uint            `gorm:"index;not null"`
	Name      string          `gorm:"size:100;not null"`
	Type      string          `gorm:"size:20;not null;default:checking"`
	Balance   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	Currency  string          `gorm:"size:3;not null;default:RON"`
	CreatedAt time.Time
	UpdatedAt time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}
