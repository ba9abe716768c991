package bank

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/parjanul123/MoneyManager/internal/config"
	"github.com/parjanul123/MoneyManager/internal/ledger"
	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClient struct {
	balance      *BalanceData
	transactions []ExternalTransaction
	err          error
}

func (f *fakeClient) ProbeBalance(ctx context.Context) (*BalanceData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.balance, nil
}

func (f *fakeClient) ListTransactions(ctx context.Context, days int) ([]ExternalTransaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.transactions, nil
}

type importerFixture struct {
	db       *gorm.DB
	importer *Importer
	user     *models.User
	conn     *models.BankConnection
}

func newImporterFixture(t *testing.T, client Client) *importerFixture {
	t.Helper()
	db := testutil.OpenDB(t)

	user := &models.User{Username: "ana", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)

	conn := &models.BankConnection{
		UserID:      user.ID,
		Bank:        models.BankRevolut,
		AccountName: "Revolut Main",
		IsActive:    true,
	}
	require.NoError(t, db.Create(conn).Error)

	importer := NewImporter(db, config.BankConfig{TimeoutSeconds: 10}, &ledger.Service{DB: db})
	importer.ClientFor = func(*models.BankConnection) (Client, error) {
		return client, nil
	}
	return &importerFixture{db: db, importer: importer, user: user, conn: conn}
}

func externalTx(id string, amount string) ExternalTransaction {
	return ExternalTransaction{
		ExternalID:  id,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "RON",
		Description: "BT Pay - Mega Image",
		Date:        time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
	}
}

func TestSyncConnectionInsertsPending(t *testing.T) {
	f := newImporterFixture(t, &fakeClient{transactions: []ExternalTransaction{
		externalTx("ext-1", "-42.50"),
		externalTx("ext-2", "100.00"),
	}})

	inserted, err := f.importer.SyncConnection(context.Background(), f.conn, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.NotNil(t, f.conn.LastSyncAt)

	var rows []models.BankTransaction
	require.NoError(t, f.db.Order("external_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, models.SyncPending, rows[0].SyncStatus)
	assert.Equal(t, f.user.ID, rows[0].UserID)
	assert.Equal(t, f.conn.ID, rows[0].BankConnectionID)
}

func TestSyncConnectionIdempotent(t *testing.T) {
	f := newImporterFixture(t, &fakeClient{transactions: []ExternalTransaction{
		externalTx("ext-1", "-42.50"),
	}})

	_, err := f.importer.SyncConnection(context.Background(), f.conn, 30)
	require.NoError(t, err)

	inserted, err := f.importer.SyncConnection(context.Background(), f.conn, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	var count int64
	require.NoError(t, f.db.Model(&models.BankTransaction{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSyncConnectionStampsEmptyWindow(t *testing.T) {
	f := newImporterFixture(t, &fakeClient{})

	inserted, err := f.importer.SyncConnection(context.Background(), f.conn, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	var conn models.BankConnection
	require.NoError(t, f.db.First(&conn, f.conn.ID).Error)
	assert.NotNil(t, conn.LastSyncAt)
}

func TestSyncConnectionSkipsEmptyExternalID(t *testing.T) {
	f := newImporterFixture(t, &fakeClient{transactions: []ExternalTransaction{
		externalTx("", "-5.00"),
		externalTx("ext-ok", "-5.00"),
	}})

	inserted, err := f.importer.SyncConnection(context.Background(), f.conn, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestSyncAllContinuesPastFailingConnection(t *testing.T) {
	f := newImporterFixture(t, nil)

	broken := &models.BankConnection{
		UserID:      f.user.ID,
		Bank:        models.BankBT,
		AccountName: "BT Main",
		IsActive:    true,
	}
	require.NoError(t, f.db.Create(broken).Error)

	inactive := &models.BankConnection{
		UserID:      f.user.ID,
		Bank:        models.BankRevolut,
		AccountName: "Old",
		IsActive:    false,
	}
	require.NoError(t, f.db.Create(inactive).Error)

	f.importer.ClientFor = func(conn *models.BankConnection) (Client, error) {
		if conn.Bank == models.BankBT {
			return &fakeClient{err: fmt.Errorf("provider down")}, nil
		}
		return &fakeClient{transactions: []ExternalTransaction{
			externalTx("ext-1", "-10.00"),
		}}, nil
	}

	total := f.importer.SyncAll(context.Background(), f.user.ID, 30)
	assert.Equal(t, 1, total)
}

func TestProbeAndUpdateBalanceCreatesAccount(t *testing.T) {
	f := newImporterFixture(t, &fakeClient{balance: &BalanceData{
		Balance:   decimal.RequireFromString("1234.56"),
		Currency:  "RON",
		AccountID: "remote-1",
	}})

	balance, err := f.importer.ProbeAndUpdateBalance(context.Background(), f.conn)
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("1234.56")))
	assert.Equal(t, "remote-1", f.conn.APIUserID)

	var account models.Account
	require.NoError(t, f.db.Where("user_id = ? AND name = ?", f.user.ID, "Revolut Main").
		First(&account).Error)
	assert.Equal(t, models.AccountChecking, account.Type)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("1234.56")))
	assert.Equal(t, "RON", account.Currency)
}

func TestProbeAndUpdateBalanceOverwritesExisting(t *testing.T) {
	f := newImporterFixture(t, &fakeClient{balance: &BalanceData{
		Balance:  decimal.RequireFromString("2000.00"),
		Currency: "RON",
	}})

	existing := &models.Account{
		UserID:   f.user.ID,
		Name:     "Revolut Main",
		Type:     models.AccountChecking,
		Balance:  decimal.RequireFromString("5.00"),
		Currency: "RON",
	}
	require.NoError(t, f.db.Create(existing).Error)

	_, err := f.importer.ProbeAndUpdateBalance(context.Background(), f.conn)
	require.NoError(t, err)

	var account models.Account
	require.NoError(t, f.db.First(&account, existing.ID).Error)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("2000")))

	var count int64
	require.NoError(t, f.db.Model(&models.Account{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestProbeFailureWritesNothing(t *testing.T) {
	f := newImporterFixture(t, &fakeClient{err: fmt.Errorf("provider down")})

	_, err := f.importer.ProbeAndUpdateBalance(context.Background(), f.conn)
	require.Error(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.Account{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestAutoSyncPending(t *testing.T) {
	f := newImporterFixture(t, &fakeClient{transactions: []ExternalTransaction{
		externalTx("ext-ron", "-42.50"),
		func() ExternalTransaction {
			tx := externalTx("ext-eur", "-10.00")
			tx.Currency = "EUR"
			return tx
		}(),
	}})

	account := &models.Account{
		UserID:   f.user.ID,
		Name:     "Main",
		Type:     models.AccountChecking,
		Balance:  decimal.RequireFromString("1000.00"),
		Currency: "RON",
	}
	require.NoError(t, f.db.Create(account).Error)

	_, err := f.importer.SyncConnection(context.Background(), f.conn, 30)
	require.NoError(t, err)

	synced := f.importer.AutoSyncPending(f.user.ID)
	assert.Equal(t, 1, synced)

	var ronTx models.BankTransaction
	require.NoError(t, f.db.Where("external_id = ?", "ext-ron").First(&ronTx).Error)
	assert.Equal(t, models.SyncSynced, ronTx.SyncStatus)
	require.NotNil(t, ronTx.SyncedToID)

	var eurTx models.BankTransaction
	require.NoError(t, f.db.Where("external_id = ?", "ext-eur").First(&eurTx).Error)
	assert.Equal(t, models.SyncPending, eurTx.SyncStatus)

	var fresh models.Account
	require.NoError(t, f.db.First(&fresh, account.ID).Error)
	assert.True(t, fresh.Balance.Equal(decimal.RequireFromString("957.50")))
}
