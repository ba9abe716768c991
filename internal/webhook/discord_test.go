package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parjanul123/MoneyManager/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPostsEmbed(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL)
	n.Send(Embed{
		Title: "New Expense",
		Color: ColorExpense,
		Fields: []EmbedField{
			{Name: "Amount", Value: "42.50 RON", Inline: true},
		},
	})

	require.Len(t, got.Embeds, 1)
	embed := got.Embeds[0]
	assert.Equal(t, "New Expense", embed.Title)
	assert.Equal(t, ColorExpense, embed.Color)
	assert.NotEmpty(t, embed.Timestamp)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "42.50 RON", embed.Fields[0].Value)
}

func TestSendDisabledWithoutURL(t *testing.T) {
	n := NewNotifier("")
	n.Send(Embed{Title: "ignored"}) // must not panic or post
}

func TestNotifyTransactionColors(t *testing.T) {
	user := &models.User{Username: "ana"}
	account := &models.Account{Name: "Main", Currency: "RON"}

	ch := make(chan payload, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got payload
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		ch <- got
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL)

	n.NotifyTransaction(user, &models.Transaction{
		Type:   models.TypeExpense,
		Amount: decimal.RequireFromString("42.50"),
	}, account, "")
	got := <-ch
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "New Expense", got.Embeds[0].Title)
	assert.Equal(t, ColorExpense, got.Embeds[0].Color)
	assert.Equal(t, "Uncategorized", got.Embeds[0].Fields[2].Value)

	n.NotifyTransaction(user, &models.Transaction{
		Type:   models.TypeIncome,
		Amount: decimal.RequireFromString("100"),
	}, account, "Salary")
	got = <-ch
	assert.Equal(t, "New Income", got.Embeds[0].Title)
	assert.Equal(t, ColorIncome, got.Embeds[0].Color)
	assert.Equal(t, "100.00 RON", got.Embeds[0].Fields[0].Value)
}
