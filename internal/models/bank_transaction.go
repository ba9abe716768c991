package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sync status lifecycle for imported bank transactions.
// pending -> synced (accepted or auto-categorized), pending -> ignored.
// synced and ignored are terminal. "duplicated" is a declared status
// that import never assigns: duplicates are skipped before insert.
const (
	SyncPending    = "pending"
	SyncSynced     = "synced"
	SyncDuplicated = "duplicated"
	SyncIgnored    = "ignored"
)

// BankTransaction is a raw record imported from a bank/wallet API,
// awaiting reconciliation into a ledger Transaction. ExternalID is
// unique system-wide; re-importing the same window is a no-op.
type BankTransaction struct {
	ID               uint            `gorm:"primaryKey"`
	UserID           uint            `gorm:"index;not null"`
	BankConnectionID uint            `gorm:"index;not null"`
	ExternalID       string          `gorm:"size:255;uniqueIndex;not null"`
	Amount           decimal.Decimal `gorm:"type:decimal(15,2);not null"` // signed: negative = outflow
	Currency         string          `gorm:"size:3;not null;default:RON"`
	Description      string          `gorm:"type:text"`
	Date             time.Time       `gorm:"index;not null"`
	RecipientName    string          `gorm:"size:255"`
	RecipientAccount string          `gorm:"size:100"`
	SyncStatus       string          `gorm:"size:20;index;not null;default:pending"`
	SyncedToID       *uint           `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	User           User            `gorm:"constraint:OnDelete:CASCADE"`
	BankConnection BankConnection  `gorm:"constraint:OnDelete:CASCADE"`
	SyncedTo       *Transaction    `gorm:"foreignKey:SyncedToID;constraint:OnDelete:SET NULL"`
}
