package bank

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/parjanul123/MoneyManager/internal/config"
	"github.com/parjanul123/MoneyManager/internal/ledger"
	"github.com/parjanul123/MoneyManager/internal/models"

	"gorm.io/gorm"
)

// Importer pulls provider transactions into local BankTransaction rows.
// Import is idempotent on the external id: rows that already exist are
// skipped, so overlapping windows and concurrent syncs never
// double-insert.
type Importer struct {
	DB     *gorm.DB
	Cfg    config.BankConfig
	Ledger *ledger.Service

	// ClientFor builds the provider client for a connection. Tests
	// substitute fakes here.
	ClientFor func(conn *models.BankConnection) (Client, error)
}

func NewImporter(db *gorm.DB, cfg config.BankConfig, ledgerSvc *ledger.Service) *Importer {
	return &Importer{
		DB:     db,
		Cfg:    cfg,
		Ledger: ledgerSvc,
		ClientFor: func(conn *models.BankConnection) (Client, error) {
			return NewClient(conn, cfg)
		},
	}
}

// SyncConnection fetches the provider window for one connection and
// inserts any unseen transactions as pending. The connection's last-sync
// timestamp is stamped after a successful fetch even when nothing new
// was inserted. Returns the count of newly inserted rows.
func (im *Importer) SyncConnection(ctx context.Context, conn *models.BankConnection, days int) (int, error) {
	if days <= 0 {
		days = 30
	}

	client, err := im.ClientFor(conn)
	if err != nil {
		return 0, err
	}

	transactions, err := client.ListTransactions(ctx, days)
	if err != nil {
		return 0, fmt.Errorf("list transactions for connection %d: %w", conn.ID, err)
	}

	inserted := 0
	for _, external := range transactions {
		created, err := im.insertIfAbsent(conn, external)
		if err != nil {
			log.Printf("bank: insert %s: %v", external.ExternalID, err)
			continue
		}
		if created {
			inserted++
		}
	}

	now := time.Now()
	if err := im.DB.Model(&models.BankConnection{}).
		Where("id = ?", conn.ID).
		Update("last_sync_at", now).Error; err != nil {
		return inserted, fmt.Errorf("stamp last sync: %w", err)
	}
	conn.LastSyncAt = &now

	return inserted, nil
}

// insertIfAbsent enforces at-most-once import per external id.
func (im *Importer) insertIfAbsent(conn *models.BankConnection, external ExternalTransaction) (bool, error) {
	if external.ExternalID == "" {
		return false, fmt.Errorf("empty external id")
	}

	var count int64
	if err := im.DB.Model(&models.BankTransaction{}).
		Where("external_id = ?", external.ExternalID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	row := models.BankTransaction{
		UserID:           conn.UserID,
		BankConnectionID: conn.ID,
		ExternalID:       external.ExternalID,
		Amount:           external.Amount,
		Currency:         external.Currency,
		Description:      external.Description,
		Date:             external.Date,
		RecipientName:    external.RecipientName,
		RecipientAccount: external.RecipientAccount,
		SyncStatus:       models.SyncPending,
	}
	if err := im.DB.Create(&row).Error; err != nil {
		return false, err
	}
	return true, nil
}

// SyncAll syncs every active connection of the user. A provider failure
// on one connection is logged and contributes zero, never aborting the
// batch.
func (im *Importer) SyncAll(ctx context.Context, userID uint, days int) int {
	var connections []models.BankConnection
	if err := im.DB.Where("user_id = ? AND is_active = ?", userID, true).
		Find(&connections).Error; err != nil {
		log.Printf("bank: load connections for user %d: %v", userID, err)
		return 0
	}

	total := 0
	for i := range connections {
		synced, err := im.SyncConnection(ctx, &connections[i], days)
		if err != nil {
			log.Printf("bank: sync %s connection %d: %v",
				connections[i].Bank, connections[i].ID, err)
			continue
		}
		total += synced
	}
	return total
}

// ProbeAndUpdateBalance probes the connection's remote balance and
// creates-or-updates the local Account matching the connection's account
// name, overwriting its balance and currency. On probe failure the
// caller gets ErrNoData (wrapped) and no local write happens.
func (im *Importer) ProbeAndUpdateBalance(ctx context.Context, conn *models.BankConnection) (*BalanceData, error) {
	client, err := im.ClientFor(conn)
	if err != nil {
		return nil, err
	}

	balance, err := client.ProbeBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("probe balance for connection %d: %w", conn.ID, err)
	}

	if err := im.ApplyBalance(conn, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// ApplyBalance stores the probed remote account id and materializes the
// balance into the local Account matching the connection's account name.
func (im *Importer) ApplyBalance(conn *models.BankConnection, balance *BalanceData) error {
	if balance.AccountID != "" && balance.AccountID != conn.APIUserID {
		conn.APIUserID = balance.AccountID
		if conn.ID != 0 {
			if err := im.DB.Model(&models.BankConnection{}).
				Where("id = ?", conn.ID).
				Update("api_user_id", balance.AccountID).Error; err != nil {
				return fmt.Errorf("store api user id: %w", err)
			}
		}
	}

	var account models.Account
	err := im.DB.Where("user_id = ? AND name = ?", conn.UserID, conn.AccountName).
		First(&account).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		account = models.Account{
			UserID:   conn.UserID,
			Name:     conn.AccountName,
			Type:     models.AccountChecking,
			Balance:  balance.Balance,
			Currency: balance.Currency,
		}
		if err := im.DB.Create(&account).Error; err != nil {
			return fmt.Errorf("create account: %w", err)
		}
	case err != nil:
		return fmt.Errorf("load account: %w", err)
	default:
		account.Balance = balance.Balance
		account.Currency = balance.Currency
		if err := im.DB.Save(&account).Error; err != nil {
			return fmt.Errorf("update account: %w", err)
		}
	}

	log.Printf("bank: updated balance for account %q: %s %s",
		account.Name, account.Balance, account.Currency)
	return nil
}

// AutoSyncPending turns every pending bank transaction with a
// currency-matched account into an uncategorized ledger transaction.
// Rows with no matching account are logged and left pending.
func (im *Importer) AutoSyncPending(userID uint) int {
	var pending []models.BankTransaction
	if err := im.DB.Where("user_id = ? AND sync_status = ? AND synced_to_id IS NULL",
		userID, models.SyncPending).
		Find(&pending).Error; err != nil {
		log.Printf("bank: load pending for user %d: %v", userID, err)
		return 0
	}

	synced := 0
	for i := range pending {
		bankTx := &pending[i]

		var account models.Account
		err := im.DB.Where("user_id = ? AND currency = ?", userID, bankTx.Currency).
			Order("id ASC").First(&account).Error
		if err == gorm.ErrRecordNotFound {
			log.Printf("bank: no %s account for user %d", bankTx.Currency, userID)
			continue
		}
		if err != nil {
			log.Printf("bank: load account: %v", err)
			continue
		}

		txType := models.TypeExpense
		if bankTx.Amount.IsPositive() {
			txType = models.TypeIncome
		}

		tx := &models.Transaction{
			UserID:      userID,
			AccountID:   account.ID,
			Type:        txType,
			Amount:      bankTx.Amount.Abs(),
			Description: bankTx.Description,
			Date:        bankTx.Date,
		}
		if err := im.Ledger.Reconcile(bankTx, tx); err != nil {
			log.Printf("bank: reconcile %s: %v", bankTx.ExternalID, err)
			continue
		}
		synced++
	}
	return synced
}
