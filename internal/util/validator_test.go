package util

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{"positive", "42.50", false},
		{"smallest", "0.01", false},
		{"zero", "0", true},
		{"negative", "-1", true},
		{"too large", "10000000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decimal.RequireFromString(tt.amount)
			err := ValidateAmount(d)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDate(t *testing.T) {
	d, err := ValidateDate("2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, 14, d.Day())

	_, err = ValidateDate("")
	assert.Error(t, err)
	_, err = ValidateDate("14.03.2025")
	assert.Error(t, err)
}

func TestValidateCurrency(t *testing.T) {
	assert.NoError(t, ValidateCurrency("RON"))
	assert.NoError(t, ValidateCurrency("EUR"))
	assert.Error(t, ValidateCurrency("ron"))
	assert.Error(t, ValidateCurrency("LEI1"))
	assert.Error(t, ValidateCurrency(""))
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("-42.50")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("-42.5")))

	_, err = ParseAmount("abc")
	assert.Error(t, err)
}
