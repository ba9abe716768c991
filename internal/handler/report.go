package handler

import (
	"net/http"
	"time"

	"github.com/parjanul123/MoneyManager/internal/middleware"
	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReportHandler struct {
	DB *gorm.DB
}

func NewReportHandler(db *gorm.DB) *ReportHandler {
	return &ReportHandler{DB: db}
}

// reportRange resolves optional from/to query params, defaulting to the
// current month.
func reportRange(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	if s := c.Query("from"); s != "" {
		parsed, err := util.ValidateDate(s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if s := c.Query("to"); s != "" {
		parsed, err := util.ValidateDate(s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func (h *ReportHandler) sumByType(userID uint, txType string, from, to time.Time) (decimal.Decimal, error) {
	var sumStr string
	row := h.DB.Model(&models.Transaction{}).
		Where("user_id = ? AND type = ? AND date >= ? AND date < ?", userID, txType, from, to).
		Select("COALESCE(SUM(amount), 0)").Row()
	if err := row.Scan(&sumStr); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(sumStr)
}

// Summary returns income, expenses and net over the range, plus the
// total balance across accounts.
func (h *ReportHandler) Summary(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	from, to, err := reportRange(c)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid date range")
		return
	}

	income, err := h.sumByType(user.ID, models.TypeIncome, from, to)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to build summary")
		return
	}
	expenses, err := h.sumByType(user.ID, models.TypeExpense, from, to)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to build summary")
		return
	}

	var accounts []models.Account
	if err := h.DB.Where("user_id = ?", user.ID).Find(&accounts).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to build summary")
		return
	}
	byCurrency := map[string]decimal.Decimal{}
	for _, account := range accounts {
		byCurrency[account.Currency] = byCurrency[account.Currency].Add(account.Balance)
	}
	balances := util.Response{}
	for currency, total := range byCurrency {
		balances[currency] = total.StringFixed(2)
	}

	util.Success(c, util.Response{
		"from":     from.Format("2006-01-02"),
		"to":       to.AddDate(0, 0, -1).Format("2006-01-02"),
		"income":   income.StringFixed(2),
		"expenses": expenses.StringFixed(2),
		"net":      income.Sub(expenses).StringFixed(2),
		"balances": balances,
	})
}

// Categories breaks expenses down per category over the range.
func (h *ReportHandler) Categories(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	from, to, err := reportRange(c)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid date range")
		return
	}

	var transactions []models.Transaction
	if err := h.DB.Preload("Category").
		Where("user_id = ? AND type = ? AND date >= ? AND date < ?",
			user.ID, models.TypeExpense, from, to).
		Find(&transactions).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to build report")
		return
	}

	type bucket struct {
		name  string
		count int
		total decimal.Decimal
	}
	buckets := map[string]*bucket{}
	order := []string{}
	grand := decimal.Zero
	for i := range transactions {
		name := "Uncategorized"
		if transactions[i].Category != nil {
			name = transactions[i].Category.Name
		}
		b, ok := buckets[name]
		if !ok {
			b = &bucket{name: name}
			buckets[name] = b
			order = append(order, name)
		}
		b.count++
		b.total = b.total.Add(transactions[i].Amount)
		grand = grand.Add(transactions[i].Amount)
	}

	items := make([]util.Response, 0, len(order))
	for _, name := range order {
		b := buckets[name]
		item := util.Response{
			"category": b.name,
			"count":    b.count,
			"total":    b.total.StringFixed(2),
		}
		if grand.IsPositive() {
			pct, _ := b.total.Div(grand).Mul(decimal.NewFromInt(100)).Round(1).Float64()
			item["percentage"] = pct
		}
		items = append(items, item)
	}

	util.Success(c, util.Response{
		"from":       from.Format("2006-01-02"),
		"to":         to.AddDate(0, 0, -1).Format("2006-01-02"),
		"total":      grand.StringFixed(2),
		"categories": items,
	})
}
