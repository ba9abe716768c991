package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/parjanul123/MoneyManager/internal/bank"
	"github.com/parjanul123/MoneyManager/internal/config"
	"github.com/parjanul123/MoneyManager/internal/ledger"
	"github.com/parjanul123/MoneyManager/internal/middleware"
	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BankHandler struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Importer *bank.Importer
	Ledger   *ledger.Service
}

func NewBankHandler(db *gorm.DB, cfg *config.Config, importer *bank.Importer, ledgerSvc *ledger.Service) *BankHandler {
	return &BankHandler{DB: db, Cfg: cfg, Importer: importer, Ledger: ledgerSvc}
}

func connectionView(conn *models.BankConnection) util.Response {
	view := util.Response{
		"id":           conn.ID,
		"bank":         conn.Bank,
		"bank_name":    models.BankDisplayName(conn.Bank),
		"account_name": conn.AccountName,
		"is_active":    conn.IsActive,
		"created_at":   conn.CreatedAt,
	}
	if conn.LastSyncAt != nil {
		view["last_sync_at"] = conn.LastSyncAt
	}
	return view
}

func (h *BankHandler) ListConnections(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var connections []models.BankConnection
	if err := h.DB.Where("user_id = ?", user.ID).Order("id ASC").Find(&connections).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to list connections")
		return
	}

	items := make([]util.Response, 0, len(connections))
	for i := range connections {
		items = append(items, connectionView(&connections[i]))
	}
	util.Success(c, util.Response{"connections": items})
}

type connectionRequest struct {
	Bank          string `json:"bank" binding:"required"`
	AccountName   string `json:"account_name" binding:"required"`
	AccountNumber string `json:"account_number"`
	AccessToken   string `json:"access_token" binding:"required"`
	RefreshToken  string `json:"refresh_token"`
}

// CreateConnection probes the provider before persisting anything; bad
// credentials never leave a half-configured connection behind.
func (h *BankHandler) CreateConnection(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	if req.Bank != models.BankRevolut && req.Bank != models.BankBT {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "unknown bank")
		return
	}

	key := h.Cfg.Bank.EncryptionKey
	accessToken, err := util.EncryptToken(key, req.AccessToken)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to store credentials")
		return
	}
	refreshToken, err := util.EncryptToken(key, req.RefreshToken)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to store credentials")
		return
	}

	conn := models.BankConnection{
		UserID:        user.ID,
		Bank:          req.Bank,
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		IsActive:      true,
	}

	client, err := h.Importer.ClientFor(&conn)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	balance, err := client.ProbeBalance(c.Request.Context())
	if err != nil {
		log.Printf("bank: probe %s for user %d: %v", req.Bank, user.ID, err)
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
			"bank rejected the credentials, connection not saved")
		return
	}

	if err := h.DB.Create(&conn).Error; err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
			"connection for this bank account already exists")
		return
	}
	if err := h.Importer.ApplyBalance(&conn, balance); err != nil {
		log.Printf("bank: apply balance for connection %d: %v", conn.ID, err)
	}

	view := connectionView(&conn)
	view["balance"] = balance.Balance.StringFixed(2)
	view["currency"] = balance.Currency
	util.Success(c, view)
}

func (h *BankHandler) DeleteConnection(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	result := h.DB.Where("user_id = ? AND id = ?", user.ID, c.Param("id")).
		Delete(&models.BankConnection{})
	if result.Error != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to delete connection")
		return
	}
	if result.RowsAffected == 0 {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "connection not found")
		return
	}
	util.Success(c, util.Response{"message": "connection deleted"})
}

type syncRequest struct {
	ConnectionID uint `json:"connection_id"`
	DaysBack     int  `json:"days_back"`
	AutoCreate   bool `json:"auto_create"`
}

// Sync imports the provider window for one connection or all active
// ones. With auto_create, imported rows are immediately turned into
// ledger transactions where a currency-matched account exists.
func (h *BankHandler) Sync(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	// empty body means "sync everything with defaults"
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	imported := 0
	if req.ConnectionID != 0 {
		var conn models.BankConnection
		if err := h.DB.Where("user_id = ? AND id = ?", user.ID, req.ConnectionID).
			First(&conn).Error; err != nil {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "connection not found")
			return
		}
		count, err := h.Importer.SyncConnection(ctx, &conn, req.DaysBack)
		if err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "sync failed: "+err.Error())
			return
		}
		imported = count
	} else {
		imported = h.Importer.SyncAll(ctx, user.ID, req.DaysBack)
	}

	autoSynced := 0
	if req.AutoCreate {
		autoSynced = h.Importer.AutoSyncPending(user.ID)
	}

	util.Success(c, util.Response{
		"imported":    imported,
		"auto_synced": autoSynced,
	})
}

func bankTransactionView(tx *models.BankTransaction) util.Response {
	view := util.Response{
		"id":          tx.ID,
		"external_id": tx.ExternalID,
		"amount":      tx.Amount.StringFixed(2),
		"currency":    tx.Currency,
		"description": tx.Description,
		"date":        tx.Date,
		"sync_status": tx.SyncStatus,
	}
	if tx.RecipientName != "" {
		view["recipient_name"] = tx.RecipientName
	}
	if tx.SyncedToID != nil {
		view["synced_to_id"] = *tx.SyncedToID
	}
	return view
}

// listBankTransactions answers the pending and synced listings, each
// with income/expense aggregates over the full status set.
func (h *BankHandler) listBankTransactions(c *gin.Context, status string) {
	user, _ := middleware.CurrentUser(c)

	var transactions []models.BankTransaction
	if err := h.DB.Where("user_id = ? AND sync_status = ?", user.ID, status).
		Order("date DESC, id DESC").
		Find(&transactions).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to list bank transactions")
		return
	}

	income := decimal.Zero
	expense := decimal.Zero
	items := make([]util.Response, 0, len(transactions))
	for i := range transactions {
		tx := &transactions[i]
		if tx.Amount.IsPositive() {
			income = income.Add(tx.Amount)
		} else {
			expense = expense.Add(tx.Amount.Abs())
		}
		items = append(items, bankTransactionView(tx))
	}

	util.Success(c, util.Response{
		"transactions":  items,
		"count":         len(items),
		"total_income":  income.StringFixed(2),
		"total_expense": expense.StringFixed(2),
	})
}

func (h *BankHandler) ListPending(c *gin.Context) {
	h.listBankTransactions(c, models.SyncPending)
}

func (h *BankHandler) ListSynced(c *gin.Context) {
	h.listBankTransactions(c, models.SyncSynced)
}

type acceptRequest struct {
	CategoryID  *uint  `json:"category_id"`
	Description string `json:"description"`
}

// Accept reconciles one pending bank transaction into the ledger, with
// optional category and description overrides.
func (h *BankHandler) Accept(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid transaction id")
		return
	}

	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	if req.CategoryID != nil {
		var count int64
		if err := h.DB.Model(&models.Category{}).Where("id = ?", *req.CategoryID).Count(&count).Error; err != nil || count == 0 {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "unknown category")
			return
		}
	}

	var bankTx models.BankTransaction
	if err := h.DB.Where("user_id = ? AND id = ?", user.ID, id).First(&bankTx).Error; err != nil {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "bank transaction not found")
		return
	}
	if bankTx.SyncStatus != models.SyncPending {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
			"bank transaction is not pending")
		return
	}

	var account models.Account
	err = h.DB.Where("user_id = ? AND currency = ?", user.ID, bankTx.Currency).
		Order("id ASC").First(&account).Error
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
			"no account with currency "+bankTx.Currency+", create one first")
		return
	}

	txType := models.TypeExpense
	if bankTx.Amount.IsPositive() {
		txType = models.TypeIncome
	}
	description := bankTx.Description
	if req.Description != "" {
		description = req.Description
	}

	tx := models.Transaction{
		UserID:      user.ID,
		AccountID:   account.ID,
		CategoryID:  req.CategoryID,
		Type:        txType,
		Amount:      bankTx.Amount.Abs(),
		Description: description,
		Date:        bankTx.Date,
	}
	if err := h.Ledger.Reconcile(&bankTx, &tx); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to accept transaction")
		return
	}

	util.Success(c, util.Response{
		"transaction":      transactionView(&tx),
		"bank_transaction": bankTransactionView(&bankTx),
	})
}

// Ignore marks a pending bank transaction as ignored. Ignored rows are
// never picked up by auto-sync or auto-categorize.
func (h *BankHandler) Ignore(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var bankTx models.BankTransaction
	if err := h.DB.Where("user_id = ? AND id = ?", user.ID, c.Param("id")).First(&bankTx).Error; err != nil {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "bank transaction not found")
		return
	}
	if bankTx.SyncStatus != models.SyncPending {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
			"bank transaction is not pending")
		return
	}

	if err := h.DB.Model(&bankTx).Update("sync_status", models.SyncIgnored).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to ignore transaction")
		return
	}
	bankTx.SyncStatus = models.SyncIgnored
	util.Success(c, bankTransactionView(&bankTx))
}
