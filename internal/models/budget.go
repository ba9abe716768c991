package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget represents a monthly spending limit for one category.
// Month is normalized to the first day of the month.
type Budget struct {
	ID         uint            `gorm:"primaryKey"`
	UserID     uint            `gorm:"index;not null;uniqueIndex:idx_budget_identity"`
	CategoryID uint            `gorm:"not null;uniqueIndex:idx_budget_identity"`
	Amount     decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Month      time.Time       `gorm:"not null;uniqueIndex:idx_budget_identity"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	User     User     `gorm:"constraint:OnDelete:CASCADE"`
	Category Category `gorm:"constraint:OnDelete:CASCADE"`
}
