package models

import "time"

// Supported bank providers.
const (
	BankRevolut = "revolut"
	BankBT      = "bt"
)

// BankDisplayName maps a provider identifier to its display name.
func BankDisplayName(bank string) string {
	switch bank {
	case BankRevolut:
		return "Revolut"
	case BankBT:
		return "Banca Transilvania"
	default:
		return bank
	}
}

// BankConnection stores per-user API credentials and sync metadata for
// one remote bank account. Access/refresh tokens are AES-encrypted at
// rest. Never deleted by the system, only by the user.
type BankConnection struct {
	ID            uint   `gorm:"primaryKey"`
	UserID        uint   `gorm:"index;not null;uniqueIndex:idx_conn_identity"`
	Bank          string `gorm:"size:20;not null;uniqueIndex:idx_conn_identity"`
	AccountName   string `gorm:"size:100;not null"`
	AccountNumber string `gorm:"size:50"`
	AccessToken   string `gorm:"type:text"`
	RefreshToken  string `gorm:"type:text"`
	APIUserID     string `gorm:"size:255;uniqueIndex:idx_conn_identity"`
	LastSyncAt    *time.Time
	IsActive      bool `gorm:"not null;default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}
