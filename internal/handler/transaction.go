package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/parjanul123/MoneyManager/internal/ledger"
	"github.com/parjanul123/MoneyManager/internal/middleware"
	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/util"
	"github.com/parjanul123/MoneyManager/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionHandler struct {
	DB       *gorm.DB
	Ledger   *ledger.Service
	Notifier *webhook.Notifier
}

func NewTransactionHandler(db *gorm.DB, ledgerSvc *ledger.Service, notifier *webhook.Notifier) *TransactionHandler {
	return &TransactionHandler{DB: db, Ledger: ledgerSvc, Notifier: notifier}
}

func transactionView(t *models.Transaction) util.Response {
	view := util.Response{
		"id":          t.ID,
		"account_id":  t.AccountID,
		"type":        t.Type,
		"amount":      t.Amount.StringFixed(2),
		"description": t.Description,
		"date":        t.Date.Format("2006-01-02"),
	}
	if t.CategoryID != nil {
		view["category_id"] = *t.CategoryID
		if t.Category != nil {
			view["category"] = t.Category.Name
		}
	}
	return view
}

// List supports account_id, category_id, type, from, to and pagination.
func (h *TransactionHandler) List(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	query := h.DB.Preload("Category").Where("user_id = ?", user.ID)

	if accountID := c.Query("account_id"); accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}
	if categoryID := c.Query("category_id"); categoryID != "" {
		query = query.Where("category_id = ?", categoryID)
	}
	if txType := c.Query("type"); txType != "" {
		if txType != models.TypeExpense && txType != models.TypeIncome {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "unknown transaction type")
			return
		}
		query = query.Where("type = ?", txType)
	}
	if from := c.Query("from"); from != "" {
		date, err := util.ValidateDate(from)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid from date")
			return
		}
		query = query.Where("date >= ?", date)
	}
	if to := c.Query("to"); to != "" {
		date, err := util.ValidateDate(to)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid to date")
			return
		}
		query = query.Where("date < ?", date.AddDate(0, 0, 1))
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	var total int64
	if err := query.Model(&models.Transaction{}).Count(&total).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to count transactions")
		return
	}

	var transactions []models.Transaction
	if err := query.Order("date DESC, id DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&transactions).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to list transactions")
		return
	}

	items := make([]util.Response, 0, len(transactions))
	for i := range transactions {
		items = append(items, transactionView(&transactions[i]))
	}
	util.Success(c, util.Response{
		"transactions": items,
		"total":        total,
		"page":         page,
		"per_page":     perPage,
	})
}

type transactionRequest struct {
	AccountID   uint   `json:"account_id" binding:"required"`
	CategoryID  *uint  `json:"category_id"`
	Type        string `json:"type" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description"`
	Date        string `json:"date" binding:"required"`
}

func (h *TransactionHandler) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	if req.Type != models.TypeExpense && req.Type != models.TypeIncome {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "unknown transaction type")
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
	date, err := util.ValidateDate(req.Date)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid date")
		return
	}
	if req.CategoryID != nil {
		var count int64
		if err := h.DB.Model(&models.Category{}).Where("id = ?", *req.CategoryID).Count(&count).Error; err != nil || count == 0 {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "unknown category")
			return
		}
	}

	tx := models.Transaction{
		UserID:      user.ID,
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Type:        req.Type,
		Amount:      amount,
		Description: req.Description,
		Date:        date,
	}
	if err := h.Ledger.Create(&tx); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	h.notifyTransaction(user, &tx)
	util.Success(c, transactionView(&tx))
}

// notifyTransaction posts the creation embed and, for categorized
// expenses, the budget-exceeded alert when this transaction tips the
// month over its limit.
func (h *TransactionHandler) notifyTransaction(user *models.User, tx *models.Transaction) {
	var account models.Account
	if err := h.DB.First(&account, tx.AccountID).Error; err != nil {
		log.Printf("transaction: load account %d: %v", tx.AccountID, err)
		return
	}

	categoryName := ""
	if tx.CategoryID != nil {
		var category models.Category
		if err := h.DB.First(&category, *tx.CategoryID).Error; err == nil {
			categoryName = category.Name
		}
	}
	h.Notifier.NotifyTransaction(user, tx, &account, categoryName)

	if tx.Type != models.TypeExpense || tx.CategoryID == nil {
		return
	}

	month := time.Date(tx.Date.Year(), tx.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
	var budget models.Budget
	err := h.DB.Where("user_id = ? AND category_id = ? AND month = ?", user.ID, *tx.CategoryID, month).
		First(&budget).Error
	if err != nil {
		return
	}

	var spentStr string
	row := h.DB.Model(&models.Transaction{}).
		Where("user_id = ? AND category_id = ? AND type = ? AND date >= ? AND date < ?",
			user.ID, *tx.CategoryID, models.TypeExpense, month, month.AddDate(0, 1, 0)).
		Select("COALESCE(SUM(amount), 0)").Row()
	if err := row.Scan(&spentStr); err != nil {
		log.Printf("transaction: sum category %d: %v", *tx.CategoryID, err)
		return
	}
	spent, err := decimal.NewFromString(spentStr)
	if err != nil {
		return
	}
	if spent.GreaterThan(budget.Amount) {
		h.Notifier.NotifyBudgetExceeded(user, &budget, categoryName, spent)
	}
}

type transactionUpdateRequest struct {
	CategoryID  *uint   `json:"category_id"`
	Type        *string `json:"type"`
	Amount      *string `json:"amount"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
}

func (h *TransactionHandler) Update(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	txID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid transaction id")
		return
	}

	var req transactionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}

	var amount *decimal.Decimal
	if req.Amount != nil {
		parsed, err := util.ParseAmount(*req.Amount)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid amount")
			return
		}
		if err := util.ValidateAmount(parsed); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
			return
		}
		amount = &parsed
	}
	var date *time.Time
	if req.Date != nil {
		parsed, err := util.ValidateDate(*req.Date)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid date")
			return
		}
		date = &parsed
	}
	if req.Type != nil && *req.Type != models.TypeExpense && *req.Type != models.TypeIncome {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "unknown transaction type")
		return
	}

	updated, err := h.Ledger.Update(user.ID, uint(txID), func(tx *models.Transaction) {
		if req.CategoryID != nil {
			tx.CategoryID = req.CategoryID
		}
		if req.Type != nil {
			tx.Type = *req.Type
		}
		if amount != nil {
			tx.Amount = *amount
		}
		if req.Description != nil {
			tx.Description = *req.Description
		}
		if date != nil {
			tx.Date = *date
		}
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "transaction not found")
			return
		}
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	util.Success(c, transactionView(updated))
}

func (h *TransactionHandler) Delete(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	txID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid transaction id")
		return
	}

	if err := h.Ledger.Delete(user.ID, uint(txID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "transaction not found")
			return
		}
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to delete transaction")
		return
	}
	util.Success(c, util.Response{"message": "transaction deleted"})
}

// Categories returns the global category list.
func (h *TransactionHandler) Categories(c *gin.Context) {
	var categories []models.Category
	if err := h.DB.Order("name ASC").Find(&categories).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to list categories")
		return
	}

	items := make([]util.Response, 0, len(categories))
	for _, category := range categories {
		items = append(items, util.Response{
			"id":   category.ID,
			"name": category.Name,
			"type": category.Type,
		})
	}
	util.Success(c, util.Response{"categories": items})
}
