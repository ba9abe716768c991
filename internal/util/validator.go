package util

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateAmount checks that an amount is positive and below the cap.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount must be positive, got %s", amount)
	}
	if amount.GreaterThanOrEqual(decimal.NewFromInt(10_000_000)) {
		return fmt.Errorf("amount too large, got %s", amount)
	}
	return nil
}

// ValidateDate checks YYYY-MM-DD format and returns the parsed date.
func ValidateDate(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %w", err)
	}
	return t, nil
}

// ValidateCurrency checks an ISO 4217 style code (three upper letters).
func ValidateCurrency(code string) error {
	if !currencyRe.MatchString(code) {
		return fmt.Errorf("invalid currency code %q", code)
	}
	return nil
}

// ParseAmount parses a decimal amount string exactly (no float round-trip).
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
