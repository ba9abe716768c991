package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a single income or expense record affecting
// an account's balance. Amount is always positive; Type carries the sign.
type Transaction struct {
	ID          uint            `gorm:"primaryKey"`
	UserID      uint            `gorm:"index;not null"`
	AccountID   uint            `gorm:"index;not null"`
	CategoryID  *uint           `gorm:"index"`
	Type        string          `gorm:"size:10;index;not null;default:expense"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Description string          `gorm:"type:text"`
	Date        time.Time       `gorm:"index;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	User     User      `gorm:"constraint:OnDelete:CASCADE"`
	Account  Account   `gorm:"constraint:OnDelete:CASCADE"`
	Category *Category `gorm:"constraint:OnDelete:SET NULL"`
}
