package models

import "time"

// Transaction/category types.
const (
	TypeExpense = "expense"
	TypeIncome  = "income"
)

// Category represents income/expense category. Categories are global,
// not per-user; the categorizer creates them on demand.
type Category struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:100;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
	Type        string `gorm:"size:10;index;not null;default:expense"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
