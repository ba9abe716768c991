package handler

import (
	"net/http"

	"github.com/parjanul123/MoneyManager/internal/middleware"
	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/util"
	"github.com/parjanul123/MoneyManager/internal/webhook"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AccountHandler struct {
	DB       *gorm.DB
	Notifier *webhook.Notifier
}

func NewAccountHandler(db *gorm.DB, notifier *webhook.Notifier) *AccountHandler {
	return &AccountHandler{DB: db, Notifier: notifier}
}

func validAccountType(t string) bool {
	switch t {
	case models.AccountChecking, models.AccountSavings, models.AccountWallet, models.AccountInvestment:
		return true
	}
	return false
}

func accountView(a *models.Account) util.Response {
	return util.Response{
		"id":       a.ID,
		"name":     a.Name,
		"type":     a.Type,
		"balance":  a.Balance.StringFixed(2),
		"currency": a.Currency,
	}
}

func (h *AccountHandler) List(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var accounts []models.Account
	if err := h.DB.Where("user_id = ?", user.ID).Order("id ASC").Find(&accounts).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to list accounts")
		return
	}

	items := make([]util.Response, 0, len(accounts))
	for i := range accounts {
		items = append(items, accountView(&accounts[i]))
	}
	util.Success(c, util.Response{"accounts": items})
}

type accountRequest struct {
	Name     string `json:"name" binding:"required"`
	Type     string `json:"type"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

func (h *AccountHandler) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = models.AccountChecking
	}
	if !validAccountType(req.Type) {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "unknown account type")
		return
	}
	if req.Currency == "" {
		req.Currency = "RON"
	}
	if err := util.ValidateCurrency(req.Currency); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	account := models.Account{
		UserID:   user.ID,
		Name:     req.Name,
		Type:     req.Type,
		Currency: req.Currency,
	}
	if req.Balance != "" {
		balance, err := util.ParseAmount(req.Balance)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid balance")
			return
		}
		account.Balance = balance
	}

	if err := h.DB.Create(&account).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to create account")
		return
	}

	h.Notifier.NotifyAccountCreated(user, &account)
	util.Success(c, accountView(&account))
}

func (h *AccountHandler) Get(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var account models.Account
	if err := h.DB.Where("user_id = ? AND id = ?", user.ID, c.Param("id")).First(&account).Error; err != nil {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "account not found")
		return
	}
	util.Success(c, accountView(&account))
}

type accountUpdateRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

// Update changes metadata only. Balance moves through the ledger.
func (h *AccountHandler) Update(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var account models.Account
	if err := h.DB.Where("user_id = ? AND id = ?", user.ID, c.Param("id")).First(&account).Error; err != nil {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "account not found")
		return
	}

	var req accountUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	if req.Name != "" {
		account.Name = req.Name
	}
	if req.Type != "" {
		if !validAccountType(req.Type) {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "unknown account type")
			return
		}
		account.Type = req.Type
	}
	if req.Currency != "" {
		if err := util.ValidateCurrency(req.Currency); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
			return
		}
		account.Currency = req.Currency
	}

	if err := h.DB.Save(&account).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to update account")
		return
	}
	util.Success(c, accountView(&account))
}

func (h *AccountHandler) Delete(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var account models.Account
	if err := h.DB.Where("user_id = ? AND id = ?", user.ID, c.Param("id")).First(&account).Error; err != nil {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "account not found")
		return
	}

	var txCount int64
	if err := h.DB.Model(&models.Transaction{}).Where("account_id = ?", account.ID).Count(&txCount).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to check transactions")
		return
	}
	if txCount > 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
			"account has transactions, delete them first")
		return
	}

	if err := h.DB.Delete(&account).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to delete account")
		return
	}
	util.Success(c, util.Response{"message": "account deleted"})
}
