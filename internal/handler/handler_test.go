package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parjanul123/MoneyManager/internal/config"
	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/router"
	"github.com/parjanul123/MoneyManager/internal/testutil"
	"github.com/parjanul123/MoneyManager/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenExpireHours: 1,
			BcryptCost:       4,
			ExemptPaths:      []string{"/api/auth/", "/healthz"},
		},
		Bank:     config.BankConfig{TimeoutSeconds: 1},
		Realtime: config.RealtimeConfig{PushIntervalSeconds: 5},
	}
}

type app struct {
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
}

func newApp(t *testing.T) *app {
	t.Helper()
	db := testutil.OpenDB(t)
	cfg := testConfig()
	return &app{engine: router.Setup(db, cfg), db: db, cfg: cfg}
}

type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func (a *app) request(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

// registerAndLogin creates a user through the API and returns its token.
func (a *app) registerAndLogin(t *testing.T, username string) string {
	t.Helper()

	w, _ := a.request(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"password": "sup3rsecret",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := a.request(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": username,
		"password": "sup3rsecret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := env.Data["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegisterValidation(t *testing.T) {
	a := newApp(t)

	cases := []struct {
		name string
		body gin.H
	}{
		{"short username", gin.H{"username": "ab", "password": "sup3rsecret"}},
		{"bad characters", gin.H{"username": "ana maria", "password": "sup3rsecret"}},
		{"short password", gin.H{"username": "ana", "password": "a1"}},
		{"no digit", gin.H{"username": "ana", "password": "onlyletters"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := a.request(t, http.MethodPost, "/api/auth/register", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, util.CodeInvalidParam, env.Code)
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	a := newApp(t)
	a.registerAndLogin(t, "ana")

	w, env := a.request(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "ana",
		"password": "sup3rsecret",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, util.CodeInvalidParam, env.Code)
}

func TestMeRequiresAuth(t *testing.T) {
	a := newApp(t)

	w, env := a.request(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, util.CodeAuth, env.Code)
}

func TestLoginLockout(t *testing.T) {
	a := newApp(t)
	a.registerAndLogin(t, "ana")

	for i := 0; i < 5; i++ {
		w, _ := a.request(t, http.MethodPost, "/api/auth/login", "", gin.H{
			"username": "ana",
			"password": "wrongpass1",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	// correct password is refused while locked
	w, env := a.request(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "ana",
		"password": "sup3rsecret",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, env.Message, "locked")
}

func TestLogoutRevokesSession(t *testing.T) {
	a := newApp(t)
	token := a.registerAndLogin(t, "ana")

	w, _ := a.request(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = a.request(t, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSingleUseSessions(t *testing.T) {
	db := testutil.OpenDB(t)
	cfg := testConfig()
	cfg.Auth.SingleUseSessions = true
	a := &app{engine: router.Setup(db, cfg), db: db, cfg: cfg}

	token := a.registerAndLogin(t, "ana")

	w, _ := a.request(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// second use of the same session is refused
	w, _ = a.request(t, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccountAndTransactionFlow(t *testing.T) {
	a := newApp(t)
	token := a.registerAndLogin(t, "ana")

	w, env := a.request(t, http.MethodPost, "/api/accounts", token, gin.H{
		"name":    "Main",
		"type":    "checking",
		"balance": "1000.00",
	})
	require.Equal(t, http.StatusOK, w.Code)
	accountID := uint(env.Data["id"].(float64))
	assert.Equal(t, "1000.00", env.Data["balance"])
	assert.Equal(t, "RON", env.Data["currency"])

	w, env = a.request(t, http.MethodPost, "/api/transactions", token, gin.H{
		"account_id":  accountID,
		"type":        "expense",
		"amount":      "42.50",
		"description": "groceries",
		"date":        "2025-03-14",
	})
	require.Equal(t, http.StatusOK, w.Code)
	txID := uint(env.Data["id"].(float64))

	var account models.Account
	require.NoError(t, a.db.First(&account, accountID).Error)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("957.50")))

	w, _ = a.request(t, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", txID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, a.db.First(&account, accountID).Error)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("1000")))
}

func TestTransactionRejectsForeignAccount(t *testing.T) {
	a := newApp(t)
	tokenAna := a.registerAndLogin(t, "ana")
	tokenBob := a.registerAndLogin(t, "bob")

	w, env := a.request(t, http.MethodPost, "/api/accounts", tokenAna, gin.H{
		"name": "Main", "balance": "100.00",
	})
	require.Equal(t, http.StatusOK, w.Code)
	accountID := uint(env.Data["id"].(float64))

	w, _ = a.request(t, http.MethodPost, "/api/transactions", tokenBob, gin.H{
		"account_id": accountID,
		"type":       "expense",
		"amount":     "10.00",
		"date":       "2025-03-14",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBudgetAnnotation(t *testing.T) {
	a := newApp(t)
	token := a.registerAndLogin(t, "ana")

	category := models.Category{Name: "Food", Type: models.TypeExpense}
	require.NoError(t, a.db.Create(&category).Error)

	w, env := a.request(t, http.MethodPost, "/api/accounts", token, gin.H{
		"name": "Main", "balance": "1000.00",
	})
	require.Equal(t, http.StatusOK, w.Code)
	accountID := uint(env.Data["id"].(float64))

	month := time.Now().UTC().Format("2006-01")
	w, _ = a.request(t, http.MethodPost, "/api/budgets", token, gin.H{
		"category_id": category.ID,
		"amount":      "200.00",
		"month":       month,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = a.request(t, http.MethodPost, "/api/transactions", token, gin.H{
		"account_id":  accountID,
		"category_id": category.ID,
		"type":        "expense",
		"amount":      "50.00",
		"date":        time.Now().UTC().Format("2006-01-02"),
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, env = a.request(t, http.MethodGet, "/api/budgets?month="+month, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	budgets := env.Data["budgets"].([]interface{})
	require.Len(t, budgets, 1)
	budget := budgets[0].(map[string]interface{})
	assert.Equal(t, "50.00", budget["spent"])
	assert.Equal(t, "150.00", budget["remaining"])
	assert.InDelta(t, 25.0, budget["percentage"].(float64), 0.01)
}

func TestBudgetDuplicateRejected(t *testing.T) {
	a := newApp(t)
	token := a.registerAndLogin(t, "ana")

	category := models.Category{Name: "Food", Type: models.TypeExpense}
	require.NoError(t, a.db.Create(&category).Error)

	body := gin.H{"category_id": category.ID, "amount": "200.00", "month": "2025-03"}
	w, _ := a.request(t, http.MethodPost, "/api/budgets", token, body)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := a.request(t, http.MethodPost, "/api/budgets", token, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Message, "already exists")
}

func currentUserID(t *testing.T, db *gorm.DB, username string) uint {
	t.Helper()
	var user models.User
	require.NoError(t, db.Where("username = ?", username).First(&user).Error)
	return user.ID
}

func seedPendingBankTx(t *testing.T, db *gorm.DB, userID uint, externalID, amount, currency string) uint {
	t.Helper()

	conn := models.BankConnection{
		UserID:      userID,
		Bank:        models.BankBT,
		AccountName: "BT Main",
		IsActive:    true,
	}
	require.NoError(t, db.Create(&conn).Error)

	tx := models.BankTransaction{
		UserID:           userID,
		BankConnectionID: conn.ID,
		ExternalID:       externalID,
		Amount:           decimal.RequireFromString(amount),
		Currency:         currency,
		Description:      "BT Pay - Starbucks",
		Date:             time.Now(),
		SyncStatus:       models.SyncPending,
	}
	require.NoError(t, db.Create(&tx).Error)
	return tx.ID
}

func TestBankAcceptWithoutMatchingAccount(t *testing.T) {
	a := newApp(t)
	token := a.registerAndLogin(t, "ana")
	userID := currentUserID(t, a.db, "ana")
	txID := seedPendingBankTx(t, a.db, userID, "ext-1", "-42.50", "EUR")

	w, env := a.request(t, http.MethodPost, fmt.Sprintf("/api/bank/transactions/%d/accept", txID), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Message, "no account with currency EUR")

	var tx models.BankTransaction
	require.NoError(t, a.db.First(&tx, txID).Error)
	assert.Equal(t, models.SyncPending, tx.SyncStatus)
}

func TestBankAcceptReconciles(t *testing.T) {
	a := newApp(t)
	token := a.registerAndLogin(t, "ana")
	userID := currentUserID(t, a.db, "ana")
	txID := seedPendingBankTx(t, a.db, userID, "ext-1", "-42.50", "RON")

	w, env := a.request(t, http.MethodPost, "/api/accounts", token, gin.H{
		"name": "Main", "balance": "1000.00",
	})
	require.Equal(t, http.StatusOK, w.Code)
	accountID := uint(env.Data["id"].(float64))

	w, _ = a.request(t, http.MethodPost, fmt.Sprintf("/api/bank/transactions/%d/accept", txID), token,
		gin.H{"description": "coffee"})
	require.Equal(t, http.StatusOK, w.Code)

	var tx models.BankTransaction
	require.NoError(t, a.db.First(&tx, txID).Error)
	assert.Equal(t, models.SyncSynced, tx.SyncStatus)
	require.NotNil(t, tx.SyncedToID)

	var ledgerTx models.Transaction
	require.NoError(t, a.db.First(&ledgerTx, *tx.SyncedToID).Error)
	assert.Equal(t, "coffee", ledgerTx.Description)
	assert.Equal(t, models.TypeExpense, ledgerTx.Type)

	var account models.Account
	require.NoError(t, a.db.First(&account, accountID).Error)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("957.50")))
}

func TestBankIgnoreIsTerminal(t *testing.T) {
	a := newApp(t)
	token := a.registerAndLogin(t, "ana")
	userID := currentUserID(t, a.db, "ana")
	txID := seedPendingBankTx(t, a.db, userID, "ext-1", "-42.50", "RON")

	w, _ := a.request(t, http.MethodPost, fmt.Sprintf("/api/bank/transactions/%d/ignore", txID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// neither accept nor a second ignore touches an ignored row
	w, _ = a.request(t, http.MethodPost, fmt.Sprintf("/api/bank/transactions/%d/accept", txID), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = a.request(t, http.MethodPost, fmt.Sprintf("/api/bank/transactions/%d/ignore", txID), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportSummary(t *testing.T) {
	a := newApp(t)
	token := a.registerAndLogin(t, "ana")

	w, env := a.request(t, http.MethodPost, "/api/accounts", token, gin.H{
		"name": "Main", "balance": "1000.00",
	})
	require.Equal(t, http.StatusOK, w.Code)
	accountID := uint(env.Data["id"].(float64))

	today := time.Now().UTC().Format("2006-01-02")
	for _, tx := range []gin.H{
		{"account_id": accountID, "type": "income", "amount": "500.00", "date": today},
		{"account_id": accountID, "type": "expense", "amount": "120.00", "date": today},
	} {
		w, _ = a.request(t, http.MethodPost, "/api/transactions", token, tx)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, env = a.request(t, http.MethodGet, "/api/reports/summary", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "500.00", env.Data["income"])
	assert.Equal(t, "120.00", env.Data["expenses"])
	assert.Equal(t, "380.00", env.Data["net"])
}

func TestAuditTrailRecorded(t *testing.T) {
	a := newApp(t)
	token := a.registerAndLogin(t, "ana")

	w, _ := a.request(t, http.MethodPost, "/api/accounts", token, gin.H{
		"name": "Main", "balance": "10.00",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := a.request(t, http.MethodGet, "/api/logs", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs := env.Data["logs"].([]interface{})
	require.NotEmpty(t, logs)

	found := false
	for _, raw := range logs {
		entry := raw.(map[string]interface{})
		if entry["path"] == "/api/accounts" && entry["method"] == http.MethodPost {
			found = true
		}
	}
	assert.True(t, found, "account creation should be in the audit trail")
}
