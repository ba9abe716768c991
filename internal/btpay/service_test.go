package btpay

import (
	"testing"
	"time"

	"github.com/parjanul123/MoneyManager/internal/ledger"
	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	db      *gorm.DB
	svc     *Service
	user    *models.User
	account *models.Account
	conn    *models.BankConnection
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)

	user := &models.User{Username: "ana", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)

	account := &models.Account{
		UserID:   user.ID,
		Name:     "Cont curent",
		Type:     models.AccountChecking,
		Balance:  dec("1000"),
		Currency: "RON",
	}
	require.NoError(t, db.Create(account).Error)

	conn := &models.BankConnection{UserID: user.ID, Bank: models.BankBT, AccountName: "BT Cont"}
	require.NoError(t, db.Create(conn).Error)

	return &fixture{
		db:      db,
		svc:     NewService(db, ledger.NewService(db)),
		user:    user,
		account: account,
		conn:    conn,
	}
}

func (f *fixture) addBankTx(t *testing.T, externalID, amount, description, status string, date time.Time) *models.BankTransaction {
	t.Helper()
	tx := &models.BankTransaction{
		UserID:           f.user.ID,
		BankConnectionID: f.conn.ID,
		ExternalID:       externalID,
		Amount:           dec(amount),
		Currency:         "RON",
		Description:      description,
		Date:             date,
		SyncStatus:       status,
	}
	require.NoError(t, f.db.Create(tx).Error)
	return tx
}

func TestCategorizeTransactionCommits(t *testing.T) {
	f := newFixture(t)
	bankTx := f.addBankTx(t, "ext-1", "-42.50", "BT Pay - Starbucks Downtown", models.SyncPending, time.Now())

	ok, err := f.svc.CategorizeTransaction(bankTx)
	require.NoError(t, err)
	assert.True(t, ok)

	var reloaded models.BankTransaction
	require.NoError(t, f.db.First(&reloaded, bankTx.ID).Error)
	assert.Equal(t, models.SyncSynced, reloaded.SyncStatus)
	require.NotNil(t, reloaded.SyncedToID)

	var tx models.Transaction
	require.NoError(t, f.db.First(&tx, *reloaded.SyncedToID).Error)
	assert.Equal(t, models.TypeExpense, tx.Type)
	assert.True(t, tx.Amount.Equal(dec("42.50")))
	assert.Equal(t, "Starbucks Downtown", tx.Description)

	var category models.Category
	require.NotNil(t, tx.CategoryID)
	require.NoError(t, f.db.First(&category, *tx.CategoryID).Error)
	assert.Equal(t, "Food", category.Name)

	var account models.Account
	require.NoError(t, f.db.First(&account, f.account.ID).Error)
	assert.True(t, account.Balance.Equal(dec("957.50")))
}

func TestCategorizeTransactionGenericMarker(t *testing.T) {
	f := newFixture(t)
	bankTx := f.addBankTx(t, "ext-1", "-42.50", "wallet payment - Starbucks Downtown", models.SyncPending, time.Now())

	ok, err := f.svc.CategorizeTransaction(bankTx)
	require.NoError(t, err)
	assert.True(t, ok)

	var reloaded models.BankTransaction
	require.NoError(t, f.db.First(&reloaded, bankTx.ID).Error)
	assert.Equal(t, models.SyncSynced, reloaded.SyncStatus)
	require.NotNil(t, reloaded.SyncedToID)

	var tx models.Transaction
	require.NoError(t, f.db.First(&tx, *reloaded.SyncedToID).Error)
	assert.Equal(t, "Starbucks Downtown", tx.Description)
	assert.True(t, tx.Amount.Equal(dec("42.50")))
}

func TestCategorizeTransactionSkipsNonWallet(t *testing.T) {
	f := newFixture(t)
	bankTx := f.addBankTx(t, "ext-2", "-10", "POS purchase Kaufland", models.SyncPending, time.Now())

	ok, err := f.svc.CategorizeTransaction(bankTx)
	require.NoError(t, err)
	assert.False(t, ok)

	var reloaded models.BankTransaction
	require.NoError(t, f.db.First(&reloaded, bankTx.ID).Error)
	assert.Equal(t, models.SyncPending, reloaded.SyncStatus)
}

func TestCategorizeTransactionNoCategoryStaysPending(t *testing.T) {
	f := newFixture(t)
	bankTx := f.addBankTx(t, "ext-3", "-10", "BT Pay - Unknown Merchant SRL", models.SyncPending, time.Now())

	ok, err := f.svc.CategorizeTransaction(bankTx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCategorizeTransactionNoCurrencyAccountStaysPending(t *testing.T) {
	f := newFixture(t)
	bankTx := f.addBankTx(t, "ext-4", "-10", "BT Pay - Starbucks", models.SyncPending, time.Now())
	bankTx.Currency = "EUR"
	require.NoError(t, f.db.Save(bankTx).Error)

	ok, err := f.svc.CategorizeTransaction(bankTx)
	require.NoError(t, err)
	assert.False(t, ok)

	var reloaded models.BankTransaction
	require.NoError(t, f.db.First(&reloaded, bankTx.ID).Error)
	assert.Equal(t, models.SyncPending, reloaded.SyncStatus)
}

func TestAutoCategorizeAllSkipsIgnored(t *testing.T) {
	f := newFixture(t)
	f.addBankTx(t, "ext-5", "-42.50", "BT Pay - Starbucks Downtown", models.SyncPending, time.Now())
	f.addBankTx(t, "ext-6", "-15", "BT Pay - KFC Unirii", models.SyncIgnored, time.Now())
	f.addBankTx(t, "ext-7", "-20", "BT Pay - Mystery Place", models.SyncPending, time.Now())

	categorized := f.svc.AutoCategorizeAll(f.user.ID)
	assert.Equal(t, 1, categorized)

	// ignored stays ignored
	var ignored models.BankTransaction
	require.NoError(t, f.db.Where("external_id = ?", "ext-6").First(&ignored).Error)
	assert.Equal(t, models.SyncIgnored, ignored.SyncStatus)

	// running again commits nothing new
	assert.Equal(t, 0, f.svc.AutoCategorizeAll(f.user.ID))
}

func TestGetStats(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	for _, tx := range []struct{ id, amount, desc string }{
		{"s-1", "-42.50", "BT Pay - Starbucks Downtown"},
		{"s-2", "-17.50", "BT Pay - Starbucks Downtown"},
		{"s-3", "-100", "BT Pay - Carrefour Obor"},
		{"s-4", "-30", "BT Pay - Mystery Place"},
	} {
		f.addBankTx(t, tx.id, tx.amount, tx.desc, models.SyncSynced, now)
	}
	// non-wallet synced row is excluded
	f.addBankTx(t, "s-5", "-999", "POS purchase Kaufland", models.SyncSynced, now)
	// pending row is excluded
	f.addBankTx(t, "s-6", "-50", "BT Pay - Lidl", models.SyncPending, now)

	stats, err := f.svc.GetStats(f.user.ID, 30)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalTransactions)
	assert.True(t, stats.TotalAmount.Equal(dec("190")))

	assert.Equal(t, 2, stats.ByCategory["food"].Count)
	assert.True(t, stats.ByCategory["food"].Total.Equal(dec("60")))
	assert.Equal(t, 1, stats.ByCategory["shopping"].Count)
	assert.Equal(t, 1, stats.ByCategory["other"].Count)

	require.NotEmpty(t, stats.TopMerchants)
	assert.Equal(t, "Carrefour Obor", stats.TopMerchants[0].Name)
	assert.True(t, stats.TopMerchants[0].Total.Equal(dec("100")))
	assert.Equal(t, "Starbucks Downtown", stats.TopMerchants[1].Name)
	assert.Equal(t, 2, stats.TopMerchants[1].Count)
}

func TestPendingWalletPayments(t *testing.T) {
	f := newFixture(t)
	f.addBankTx(t, "p-1", "-42.50", "BT Pay - Starbucks", models.SyncPending, time.Now())
	f.addBankTx(t, "p-2", "-10", "POS purchase", models.SyncPending, time.Now())
	f.addBankTx(t, "p-3", "-20", "BT Pay - Lidl", models.SyncIgnored, time.Now())

	items, total, err := f.svc.PendingWalletPayments(f.user.ID, 20)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Starbucks", items[0].Merchant)
	assert.Equal(t, "food", items[0].CategoryGuess)
	assert.True(t, total.Equal(dec("42.50")))

	count, err := f.svc.PendingCount(f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHourlySummary(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.addBankTx(t, "h-1", "-10", "BT Pay - Starbucks", models.SyncSynced, now.Add(-30*time.Minute))
	f.addBankTx(t, "h-2", "-20", "BT Pay - Lidl", models.SyncSynced, now.Add(-2*time.Hour))
	f.addBankTx(t, "h-3", "-40", "BT Pay - Old Cafe", models.SyncSynced, now.Add(-30*time.Hour))

	buckets, err := f.svc.HourlySummary(f.user.ID)
	require.NoError(t, err)
	require.Len(t, buckets, 24)

	totalCount := 0
	total := dec("0")
	for _, b := range buckets {
		totalCount += b.Count
		total = total.Add(b.Amount)
	}
	assert.Equal(t, 2, totalCount)
	assert.True(t, total.Equal(dec("30")))
}

func TestGetMerchantDetail(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.addBankTx(t, "m-1", "-42.50", "BT Pay - Starbucks Downtown", models.SyncSynced, now)
	f.addBankTx(t, "m-2", "-17.50", "BT Pay - Starbucks Promenada", models.SyncSynced, now)
	f.addBankTx(t, "m-3", "-100", "BT Pay - Carrefour", models.SyncSynced, now)

	detail, err := f.svc.GetMerchantDetail(f.user.ID, "starbucks")
	require.NoError(t, err)
	assert.Equal(t, 2, detail.TotalTransactions)
	assert.True(t, detail.TotalSpent.Equal(dec("60")))
	assert.True(t, detail.Average.Equal(dec("30")))
	assert.Len(t, detail.Transactions, 2)
}
