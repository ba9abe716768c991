package ledger

import (
	"testing"
	"time"

	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedAccount(t *testing.T, db *gorm.DB, balance string) (*models.User, *models.Account) {
	t.Helper()
	user := &models.User{Username: "ana", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)
	account := &models.Account{
		UserID:   user.ID,
		Name:     "Cont curent",
		Type:     models.AccountChecking,
		Balance:  dec(balance),
		Currency: "RON",
	}
	require.NoError(t, db.Create(account).Error)
	return user, account
}

func reloadBalance(t *testing.T, db *gorm.DB, id uint) decimal.Decimal {
	t.Helper()
	var account models.Account
	require.NoError(t, db.First(&account, id).Error)
	return account.Balance
}

func TestCreateExpenseAdjustsBalance(t *testing.T) {
	db := testutil.OpenDB(t)
	user, account := seedAccount(t, db, "1000")
	svc := NewService(db)

	tx := &models.Transaction{
		UserID:    user.ID,
		AccountID: account.ID,
		Type:      models.TypeExpense,
		Amount:    dec("50"),
		Date:      time.Now(),
	}
	require.NoError(t, svc.Create(tx))
	assert.True(t, reloadBalance(t, db, account.ID).Equal(dec("950")))
}

func TestCreateIncomeAdjustsBalance(t *testing.T) {
	db := testutil.OpenDB(t)
	user, account := seedAccount(t, db, "1000")
	svc := NewService(db)

	tx := &models.Transaction{
		UserID:    user.ID,
		AccountID: account.ID,
		Type:      models.TypeIncome,
		Amount:    dec("200.25"),
		Date:      time.Now(),
	}
	require.NoError(t, svc.Create(tx))
	assert.True(t, reloadBalance(t, db, account.ID).Equal(dec("1200.25")))
}

func TestDeleteRestoresBalance(t *testing.T) {
	db := testutil.OpenDB(t)
	user, account := seedAccount(t, db, "1000")
	svc := NewService(db)

	tx := &models.Transaction{
		UserID:    user.ID,
		AccountID: account.ID,
		Type:      models.TypeExpense,
		Amount:    dec("50"),
		Date:      time.Now(),
	}
	require.NoError(t, svc.Create(tx))
	require.NoError(t, svc.Delete(user.ID, tx.ID))

	assert.True(t, reloadBalance(t, db, account.ID).Equal(dec("1000")))

	var count int64
	db.Model(&models.Transaction{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestUpdateRevertsOldEffect(t *testing.T) {
	db := testutil.OpenDB(t)
	user, account := seedAccount(t, db, "1000")
	svc := NewService(db)

	tx := &models.Transaction{
		UserID:    user.ID,
		AccountID: account.ID,
		Type:      models.TypeExpense,
		Amount:    dec("50"),
		Date:      time.Now(),
	}
	require.NoError(t, svc.Create(tx))

	// 50 expense -> 30 income: +50 back, then +30
	_, err := svc.Update(user.ID, tx.ID, func(tx *models.Transaction) {
		tx.Type = models.TypeIncome
		tx.Amount = dec("30")
	})
	require.NoError(t, err)
	assert.True(t, reloadBalance(t, db, account.ID).Equal(dec("1030")))
}

func TestCreateRejectsForeignAccount(t *testing.T) {
	db := testutil.OpenDB(t)
	_, account := seedAccount(t, db, "1000")
	svc := NewService(db)

	other := &models.User{Username: "bogdan", PasswordHash: "x"}
	require.NoError(t, db.Create(other).Error)

	tx := &models.Transaction{
		UserID:    other.ID,
		AccountID: account.ID,
		Type:      models.TypeExpense,
		Amount:    dec("10"),
		Date:      time.Now(),
	}
	assert.Error(t, svc.Create(tx))
	assert.True(t, reloadBalance(t, db, account.ID).Equal(dec("1000")))
}

func TestReconcileAtomic(t *testing.T) {
	db := testutil.OpenDB(t)
	user, account := seedAccount(t, db, "1000")
	svc := NewService(db)

	conn := &models.BankConnection{UserID: user.ID, Bank: models.BankBT, AccountName: "BT Cont"}
	require.NoError(t, db.Create(conn).Error)

	bankTx := &models.BankTransaction{
		UserID:           user.ID,
		BankConnectionID: conn.ID,
		ExternalID:       "ext-1",
		Amount:           dec("-42.50"),
		Currency:         "RON",
		Description:      "BT Pay - Starbucks Downtown",
		Date:             time.Now(),
		SyncStatus:       models.SyncPending,
	}
	require.NoError(t, db.Create(bankTx).Error)

	tx := &models.Transaction{
		UserID:      user.ID,
		AccountID:   account.ID,
		Type:        models.TypeExpense,
		Amount:      dec("42.50"),
		Description: "Starbucks Downtown",
		Date:        time.Now(),
	}
	require.NoError(t, svc.Reconcile(bankTx, tx))

	var reloaded models.BankTransaction
	require.NoError(t, db.First(&reloaded, bankTx.ID).Error)
	assert.Equal(t, models.SyncSynced, reloaded.SyncStatus)
	require.NotNil(t, reloaded.SyncedToID)
	assert.Equal(t, tx.ID, *reloaded.SyncedToID)
	assert.True(t, reloadBalance(t, db, account.ID).Equal(dec("957.50")))
}

func TestReconcileRejectsNonPending(t *testing.T) {
	db := testutil.OpenDB(t)
	user, account := seedAccount(t, db, "1000")
	svc := NewService(db)

	conn := &models.BankConnection{UserID: user.ID, Bank: models.BankBT, AccountName: "BT Cont"}
	require.NoError(t, db.Create(conn).Error)

	bankTx := &models.BankTransaction{
		UserID:           user.ID,
		BankConnectionID: conn.ID,
		ExternalID:       "ext-2",
		Amount:           dec("-10"),
		Currency:         "RON",
		Date:             time.Now(),
		SyncStatus:       models.SyncIgnored,
	}
	require.NoError(t, db.Create(bankTx).Error)

	tx := &models.Transaction{
		UserID:    user.ID,
		AccountID: account.ID,
		Type:      models.TypeExpense,
		Amount:    dec("10"),
		Date:      time.Now(),
	}
	assert.Error(t, svc.Reconcile(bankTx, tx))

	// nothing applied
	var count int64
	db.Model(&models.Transaction{}).Count(&count)
	assert.EqualValues(t, 0, count)
	assert.True(t, reloadBalance(t, db, account.ID).Equal(dec("1000")))
}
