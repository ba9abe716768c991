package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Savings represents a savings goal.
type Savings struct {
	ID            uint            `gorm:"primaryKey"`
	UserID        uint            `gorm:"index;not null"`
	Name          string          `gorm:"size:100;not null"`
	TargetAmount  decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	CurrentAmount decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	Deadline      *time.Time
	Description   string `gorm:"type:text"`
	IsActive      bool   `gorm:"not null;default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}

// ProgressPercentage returns how much of the target has been saved, 0-100+.
func (s *Savings) ProgressPercentage() float64 {
	if s.TargetAmount.IsZero() {
		return 0
	}
	pct, _ := s.CurrentAmount.Div(s.TargetAmount).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}
