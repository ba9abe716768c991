package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// RevolutClient talks to the Revolut REST API with a bearer token.
type RevolutClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewRevolutClient(token, baseURL string, httpClient *http.Client) *RevolutClient {
	return &RevolutClient{baseURL: baseURL, token: token, http: httpClient}
}

type revolutAccount struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"`
	Balance  json.Number `json:"balance"`
	Currency string      `json:"currency"`
}

type revolutTransaction struct {
	ID           string      `json:"id"`
	Amount       json.Number `json:"amount"`
	Currency     string      `json:"currency"`
	Description  string      `json:"description"`
	CompletedAt  string      `json:"completed_at"`
	Counterparty struct {
		Name          string `json:"name"`
		AccountNumber string `json:"account_number"`
	} `json:"counterparty"`
}

func (c *RevolutClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("revolut %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("revolut %s: status %d", path, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber() // keep amounts exact
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("revolut %s: decode: %w", path, err)
	}
	return nil
}

func (c *RevolutClient) listAccounts(ctx context.Context) ([]revolutAccount, error) {
	var payload struct {
		Accounts []revolutAccount `json:"accounts"`
	}
	if err := c.get(ctx, "/accounts", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Accounts, nil
}

// ProbeBalance returns the balance of the CURRENT account.
func (c *RevolutClient) ProbeBalance(ctx context.Context) (*BalanceData, error) {
	accounts, err := c.listAccounts(ctx)
	if err != nil {
		return nil, err
	}

	for _, account := range accounts {
		if account.Type != "CURRENT" {
			continue
		}
		balance, err := decimal.NewFromString(account.Balance.String())
		if err != nil {
			return nil, fmt.Errorf("revolut balance %q: %w", account.Balance, err)
		}
		currency := account.Currency
		if currency == "" {
			currency = "RON"
		}
		return &BalanceData{Balance: balance, Currency: currency, AccountID: account.ID}, nil
	}
	return nil, ErrNoData
}

// ListTransactions fetches transactions of all CURRENT accounts over the
// lookback window.
func (c *RevolutClient) ListTransactions(ctx context.Context, days int) ([]ExternalTransaction, error) {
	accounts, err := c.listAccounts(ctx)
	if err != nil {
		return nil, err
	}

	from := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)
	var result []ExternalTransaction

	for _, account := range accounts {
		if account.Type != "CURRENT" {
			continue
		}

		var payload struct {
			Transactions []revolutTransaction `json:"transactions"`
		}
		query := url.Values{"from": {from}}
		if err := c.get(ctx, "/accounts/"+account.ID+"/transactions", query, &payload); err != nil {
			return nil, err
		}

		for _, tx := range payload.Transactions {
			mapped, err := mapRevolutTransaction(tx)
			if err != nil {
				return nil, err
			}
			result = append(result, mapped)
		}
	}
	return result, nil
}

func mapRevolutTransaction(tx revolutTransaction) (ExternalTransaction, error) {
	amount, err := decimal.NewFromString(tx.Amount.String())
	if err != nil {
		return ExternalTransaction{}, fmt.Errorf("revolut amount %q: %w", tx.Amount, err)
	}

	date := time.Now()
	if tx.CompletedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, tx.CompletedAt); err == nil {
			date = parsed
		}
	}

	currency := tx.Currency
	if currency == "" {
		currency = "RON"
	}

	return ExternalTransaction{
		ExternalID:       tx.ID,
		Amount:           amount,
		Currency:         currency,
		Description:      tx.Description,
		Date:             date,
		RecipientName:    tx.Counterparty.Name,
		RecipientAccount: tx.Counterparty.AccountNumber,
	}, nil
}
