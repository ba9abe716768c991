package handler

import (
	"net/http"
	"time"

	"github.com/parjanul123/MoneyManager/internal/middleware"
	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/util"
	"github.com/parjanul123/MoneyManager/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BudgetHandler struct {
	DB       *gorm.DB
	Notifier *webhook.Notifier
}

func NewBudgetHandler(db *gorm.DB, notifier *webhook.Notifier) *BudgetHandler {
	return &BudgetHandler{DB: db, Notifier: notifier}
}

// parseMonth accepts "2006-01" and normalizes to the first of the month.
func parseMonth(s string) (time.Time, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
}

// spentInMonth sums categorized expenses for one budget's month.
func (h *BudgetHandler) spentInMonth(userID, categoryID uint, month time.Time) (decimal.Decimal, error) {
	var spentStr string
	row := h.DB.Model(&models.Transaction{}).
		Where("user_id = ? AND category_id = ? AND type = ? AND date >= ? AND date < ?",
			userID, categoryID, models.TypeExpense, month, month.AddDate(0, 1, 0)).
		Select("COALESCE(SUM(amount), 0)").Row()
	if err := row.Scan(&spentStr); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(spentStr)
}

func (h *BudgetHandler) budgetView(b *models.Budget) util.Response {
	view := util.Response{
		"id":          b.ID,
		"category_id": b.CategoryID,
		"amount":      b.Amount.StringFixed(2),
		"month":       b.Month.Format("2006-01"),
	}
	if b.Category.ID != 0 {
		view["category"] = b.Category.Name
	}

	spent, err := h.spentInMonth(b.UserID, b.CategoryID, b.Month)
	if err != nil {
		return view
	}
	remaining := b.Amount.Sub(spent)
	view["spent"] = spent.StringFixed(2)
	view["remaining"] = remaining.StringFixed(2)
	if b.Amount.IsPositive() {
		pct, _ := spent.Div(b.Amount).Mul(decimal.NewFromInt(100)).Round(1).Float64()
		view["percentage"] = pct
	} else {
		view["percentage"] = 0.0
	}
	return view
}

// List returns budgets for one month (default: current), each annotated
// with spent/remaining/percentage.
func (h *BudgetHandler) List(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	monthStr := c.Query("month")
	if monthStr == "" {
		monthStr = time.Now().UTC().Format("2006-01")
	}
	month, err := parseMonth(monthStr)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "month must be YYYY-MM")
		return
	}

	var budgets []models.Budget
	if err := h.DB.Preload("Category").
		Where("user_id = ? AND month = ?", user.ID, month).
		Order("id ASC").Find(&budgets).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to list budgets")
		return
	}

	items := make([]util.Response, 0, len(budgets))
	for i := range budgets {
		items = append(items, h.budgetView(&budgets[i]))
	}
	util.Success(c, util.Response{"budgets": items, "month": monthStr})
}

type budgetRequest struct {
	CategoryID uint   `json:"category_id" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Month      string `json:"month" binding:"required"`
}

func (h *BudgetHandler) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req budgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	amount, err := util.ParseAmount(req.Amount)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid amount")
		return
	}
	if err := util.ValidateAmount(amount); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	month, err := parseMonth(req.Month)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "month must be YYYY-MM")
		return
	}

	var category models.Category
	if err := h.DB.First(&category, req.CategoryID).Error; err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "unknown category")
		return
	}

	var existing int64
	if err := h.DB.Model(&models.Budget{}).
		Where("user_id = ? AND category_id = ? AND month = ?", user.ID, req.CategoryID, month).
		Count(&existing).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to check budget")
		return
	}
	if existing > 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
			"budget for this category and month already exists")
		return
	}

	budget := models.Budget{
		UserID:     user.ID,
		CategoryID: req.CategoryID,
		Amount:     amount,
		Month:      month,
	}
	if err := h.DB.Create(&budget).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to create budget")
		return
	}
	budget.Category = category

	h.Notifier.NotifyBudgetCreated(user, &budget, category.Name)
	util.Success(c, h.budgetView(&budget))
}

type budgetUpdateRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func (h *BudgetHandler) Update(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var budget models.Budget
	if err := h.DB.Preload("Category").
		Where("user_id = ? AND id = ?", user.ID, c.Param("id")).
		First(&budget).Error; err != nil {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "budget not found")
		return
	}

	var req budgetUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	amount, err := util.ParseAmount(req.Amount)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid amount")
		return
	}
	if err := util.ValidateAmount(amount); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	budget.Amount = amount
	if err := h.DB.Save(&budget).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to update budget")
		return
	}
	util.Success(c, h.budgetView(&budget))
}

func (h *BudgetHandler) Delete(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	result := h.DB.Where("user_id = ? AND id = ?", user.ID, c.Param("id")).Delete(&models.Budget{})
	if result.Error != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to delete budget")
		return
	}
	if result.RowsAffected == 0 {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "budget not found")
		return
	}
	util.Success(c, util.Response{"message": "budget deleted"})
}
