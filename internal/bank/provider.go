// Package bank integrates external bank provider APIs: Revolut and the
// Banca Transilvania Open Banking (PSD2) API. Each provider implements
// the Client interface and is selected through a registry keyed by the
// connection's bank identifier.
package bank

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/parjanul123/MoneyManager/internal/config"
	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/util"

	"github.com/shopspring/decimal"
)

// ErrNoData signals a failed balance probe: the caller gets "no data"
// rather than a partial result, and decides whether to persist anything.
var ErrNoData = errors.New("bank: no balance data")

// BalanceData is the result of a balance probe.
type BalanceData struct {
	Balance   decimal.Decimal
	Currency  string
	AccountID string
}

// ExternalTransaction is one provider transaction mapped to neutral form.
type ExternalTransaction struct {
	ExternalID       string
	Amount           decimal.Decimal
	Currency         string
	Description      string
	Date             time.Time
	RecipientName    string
	RecipientAccount string
}

// Client is the provider capability surface: a read-only balance probe
// and a transaction listing over a lookback window in days.
type Client interface {
	ProbeBalance(ctx context.Context) (*BalanceData, error)
	ListTransactions(ctx context.Context, days int) ([]ExternalTransaction, error)
}

type clientConstructor func(accessToken string, cfg config.BankConfig) Client

var registry = map[string]clientConstructor{
	models.BankRevolut: func(token string, cfg config.BankConfig) Client {
		return NewRevolutClient(token, cfg.RevolutBaseURL, httpClient(cfg))
	},
	models.BankBT: func(token string, cfg config.BankConfig) Client {
		return NewBTClient(token, cfg.BTBaseURL, httpClient(cfg))
	},
}

func httpClient(cfg config.BankConfig) *http.Client {
	return &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
}

// NewClient returns the provider client for a connection, decrypting its
// stored access token. Unknown banks are a validation error.
func NewClient(conn *models.BankConnection, cfg config.BankConfig) (Client, error) {
	construct, ok := registry[conn.Bank]
	if !ok {
		return nil, fmt.Errorf("unknown bank %q", conn.Bank)
	}
	token := util.DecryptToken(cfg.EncryptionKey, conn.AccessToken)
	return construct(token, cfg), nil
}
