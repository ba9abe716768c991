package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BTClient talks to the Banca Transilvania Open Banking (PSD2) API.
// Every request carries a fresh X-Request-ID.
type BTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewBTClient(token, baseURL string, httpClient *http.Client) *BTClient {
	return &BTClient{baseURL: baseURL, token: token, http: httpClient}
}

type btAmount struct {
	Amount   json.Number `json:"Amount"`
	Currency string      `json:"Currency"`
}

type btTransaction struct {
	TransactionID     string   `json:"TransactionId"`
	Amount            btAmount `json:"Amount"`
	BookingDate       string   `json:"BookingDate"`
	ValueDate         string   `json:"ValueDate"`
	SupplementaryData struct {
		Description string `json:"description"`
	} `json:"SupplementaryData"`
	Counterparty struct {
		Name           string `json:"Name"`
		Identification string `json:"Identification"`
	} `json:"Counterparty"`
}

func (c *BTClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
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
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bt %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("bt %s: status %d", path, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("bt %s: decode: %w", path, err)
	}
	return nil
}

func (c *BTClient) listAccountIDs(ctx context.Context) ([]string, error) {
	var payload struct {
		Data struct {
			Account []struct {
				AccountID string `json:"AccountId"`
			} `json:"Account"`
		} `json:"Data"`
	}
	if err := c.get(ctx, "/accounts", nil, &payload); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(payload.Data.Account))
	for _, account := range payload.Data.Account {
		ids = append(ids, account.AccountID)
	}
	return ids, nil
}

// ProbeBalance returns the first Closing.Booked balance across accounts.
func (c *BTClient) ProbeBalance(ctx context.Context) (*BalanceData, error) {
	ids, err := c.listAccountIDs(ctx)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		var payload struct {
			Data struct {
				Balance []struct {
					Type   string   `json:"Type"`
					Amount btAmount `json:"Amount"`
				} `json:"Balance"`
			} `json:"Data"`
		}
		if err := c.get(ctx, "/accounts/"+id+"/balances", nil, &payload); err != nil {
			return nil, err
		}

		for _, balance := range payload.Data.Balance {
			if balance.Type != "Closing.Booked" {
				continue
			}
			amount, err := decimal.NewFromString(balance.Amount.Amount.String())
			if err != nil {
				return nil, fmt.Errorf("bt balance %q: %w", balance.Amount.Amount, err)
			}
			currency := balance.Amount.Currency
			if currency == "" {
				currency = "RON"
			}
			return &BalanceData{Balance: amount, Currency: currency, AccountID: id}, nil
		}
	}
	return nil, ErrNoData
}

// ListTransactions fetches booked transactions across all accounts over
// the lookback window.
func (c *BTClient) ListTransactions(ctx context.Context, days int) ([]ExternalTransaction, error) {
	ids, err := c.listAccountIDs(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	query := url.Values{
		"bookingDateFrom": {now.AddDate(0, 0, -days).Format("2006-01-02")},
		"bookingDateTo":   {now.Format("2006-01-02")},
	}

	var result []ExternalTransaction
	for _, id := range ids {
		var payload struct {
			Data struct {
				Transaction []btTransaction `json:"Transaction"`
			} `json:"Data"`
		}
		if err := c.get(ctx, "/accounts/"+id+"/transactions-booked", query, &payload); err != nil {
			return nil, err
		}

		for _, tx := range payload.Data.Transaction {
			mapped, err := mapBTTransaction(tx)
			if err != nil {
				return nil, err
			}
			result = append(result, mapped)
		}
	}
	return result, nil
}

func mapBTTransaction(tx btTransaction) (ExternalTransaction, error) {
	amount, err := decimal.NewFromString(tx.Amount.Amount.String())
	if err != nil {
		return ExternalTransaction{}, fmt.Errorf("bt amount %q: %w", tx.Amount.Amount, err)
	}

	date := time.Now()
	if tx.BookingDate != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, tx.BookingDate); err == nil {
				date = parsed
				break
			}
		}
	}

	currency := tx.Amount.Currency
	if currency == "" {
		currency = "RON"
	}

	return ExternalTransaction{
		ExternalID:       tx.TransactionID,
		Amount:           amount,
		Currency:         currency,
		Description:      tx.SupplementaryData.Description,
		Date:             date,
		RecipientName:    tx.Counterparty.Name,
		RecipientAccount: tx.Counterparty.Identification,
	}, nil
}
