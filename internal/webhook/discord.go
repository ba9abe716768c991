package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/parjanul123/MoneyManager/internal/models"

	"github.com/shopspring/decimal"
)

// Embed accent colors per event kind.
const (
	ColorExpense        = 0xff3333
	ColorIncome         = 0x33ff33
	ColorAccount        = 0x4169e1
	ColorBudget         = 0xffa500
	ColorUser           = 0x9370db
	ColorDiscordLink    = 0x7289da
	ColorBudgetExceeded = 0xff6347
)

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp"`
}

type payload struct {
	Embeds []Embed `json:"embeds"`
}

// Notifier posts event embeds to a Discord webhook. An empty URL
// disables delivery, every Notify* call becomes a no-op.
type Notifier struct {
	URL  string
	HTTP *http.Client
}

func NewNotifier(url string) *Notifier {
	return &Notifier{
		URL:  url,
		HTTP: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts a single embed. Failures are logged, never surfaced:
// notification delivery must not affect the request that triggered it.
func (n *Notifier) Send(embed Embed) {
	if n == nil || n.URL == "" {
		return
	}
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload{Embeds: []Embed{embed}})
	if err != nil {
		log.Printf("webhook: marshal embed: %v", err)
		return
	}

	resp, err := n.HTTP.Post(n.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("webhook: post: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("webhook: discord returned status %d", resp.StatusCode)
	}
}

// Async fires Send on its own goroutine.
func (n *Notifier) Async(embed Embed) {
	if n == nil || n.URL == "" {
		return
	}
	go n.Send(embed)
}

func formatAmount(amount decimal.Decimal, currency string) string {
	return fmt.Sprintf("%s %s", amount.StringFixed(2), currency)
}

func (n *Notifier) NotifyTransaction(user *models.User, tx *models.Transaction, account *models.Account, categoryName string) {
	color := ColorExpense
	title := "New Expense"
	if tx.Type == models.TypeIncome {
		color = ColorIncome
		title = "New Income"
	}
	if categoryName == "" {
		categoryName = "Uncategorized"
	}
	n.Async(Embed{
		Title:       title,
		Description: tx.Description,
		Color:       color,
		Fields: []EmbedField{
			{Name: "Amount", Value: formatAmount(tx.Amount, account.Currency), Inline: true},
			{Name: "Account", Value: account.Name, Inline: true},
			{Name: "Category", Value: categoryName, Inline: true},
			{Name: "User", Value: user.Username, Inline: true},
		},
	})
}

func (n *Notifier) NotifyAccountCreated(user *models.User, account *models.Account) {
	n.Async(Embed{
		Title: "Account Created",
		Color: ColorAccount,
		Fields: []EmbedField{
			{Name: "Name", Value: account.Name, Inline: true},
			{Name: "Type", Value: account.Type, Inline: true},
			{Name: "Balance", Value: formatAmount(account.Balance, account.Currency), Inline: true},
			{Name: "User", Value: user.Username, Inline: true},
		},
	})
}

func (n *Notifier) NotifyBudgetCreated(user *models.User, budget *models.Budget, categoryName string) {
	n.Async(Embed{
		Title: "Budget Created",
		Color: ColorBudget,
		Fields: []EmbedField{
			{Name: "Category", Value: categoryName, Inline: true},
			{Name: "Amount", Value: budget.Amount.StringFixed(2), Inline: true},
			{Name: "Month", Value: budget.Month.Format("2006-01"), Inline: true},
			{Name: "User", Value: user.Username, Inline: true},
		},
	})
}

func (n *Notifier) NotifyBudgetExceeded(user *models.User, budget *models.Budget, categoryName string, spent decimal.Decimal) {
	n.Async(Embed{
		Title:       "Budget Exceeded",
		Description: fmt.Sprintf("Spending in %s went over the %s budget.", categoryName, budget.Month.Format("2006-01")),
		Color:       ColorBudgetExceeded,
		Fields: []EmbedField{
			{Name: "Budget", Value: budget.Amount.StringFixed(2), Inline: true},
			{Name: "Spent", Value: spent.StringFixed(2), Inline: true},
			{Name: "User", Value: user.Username, Inline: true},
		},
	})
}

func (n *Notifier) NotifyUserJoined(user *models.User) {
	n.Async(Embed{
		Title:       "New User",
		Description: fmt.Sprintf("%s just registered.", user.Username),
		Color:       ColorUser,
	})
}

func (n *Notifier) NotifyDiscordLinked(user *models.User) {
	n.Async(Embed{
		Title:       "Discord Linked",
		Description: fmt.Sprintf("%s linked Discord account %s.", user.Username, user.DiscordUsername),
		Color:       ColorDiscordLink,
	})
}
