// Package ledger owns every balance-affecting mutation. The cached
// Account.Balance is only ever written here (and by the bank balance
// probe, which overwrites it with the provider-reported value); each
// operation applies the transaction row and the balance adjustment
// inside one database transaction.
package ledger

import (
	"fmt"

	"github.com/parjanul123/MoneyManager/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// balanceDelta is the signed effect of a transaction on its account:
// income adds, expense subtracts.
func balanceDelta(txType string, amount decimal.Decimal) decimal.Decimal {
	if txType == models.TypeIncome {
		return amount
	}
	return amount.Neg()
}

// Create inserts a ledger transaction and adjusts the account balance
// atomically. The account must belong to the transaction's user.
func (s *Service) Create(tx *models.Transaction) error {
	return s.DB.Transaction(func(db *gorm.DB) error {
		var account models.Account
		if err := db.Where("id = ? AND user_id = ?", tx.AccountID, tx.UserID).
			First(&account).Error; err != nil {
			return fmt.Errorf("load account %d: %w", tx.AccountID, err)
		}

		if err := db.Create(tx).Error; err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		account.Balance = account.Balance.Add(balanceDelta(tx.Type, tx.Amount))
		if err := db.Model(&models.Account{}).Where("id = ?", account.ID).
			Update("balance", account.Balance).Error; err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		return nil
	})
}

// Update applies new field values to an existing transaction, reverting
// the old balance effect and applying the new one in the same database
// transaction. The account itself cannot be changed here.
func (s *Service) Update(userID, txID uint, apply func(*models.Transaction)) (*models.Transaction, error) {
	var updated *models.Transaction
	err := s.DB.Transaction(func(db *gorm.DB) error {
		var tx models.Transaction
		if err := db.Where("id = ? AND user_id = ?", txID, userID).
			First(&tx).Error; err != nil {
			return fmt.Errorf("load transaction %d: %w", txID, err)
		}

		oldDelta := balanceDelta(tx.Type, tx.Amount)
		apply(&tx)
		newDelta := balanceDelta(tx.Type, tx.Amount)

		if err := db.Save(&tx).Error; err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}

		if !oldDelta.Equal(newDelta) {
			var account models.Account
			if err := db.First(&account, tx.AccountID).Error; err != nil {
				return fmt.Errorf("load account %d: %w", tx.AccountID, err)
			}
			account.Balance = account.Balance.Sub(oldDelta).Add(newDelta)
			if err := db.Model(&models.Account{}).Where("id = ?", account.ID).
				Update("balance", account.Balance).Error; err != nil {
				return fmt.Errorf("update balance: %w", err)
			}
		}

		updated = &tx
		return nil
	})
	return updated, err
}

// Delete removes a transaction and restores its balance effect.
func (s *Service) Delete(userID, txID uint) error {
	return s.DB.Transaction(func(db *gorm.DB) error {
		var tx models.Transaction
		if err := db.Where("id = ? AND user_id = ?", txID, userID).
			First(&tx).Error; err != nil {
			return fmt.Errorf("load transaction %d: %w", txID, err)
		}

		// unlink any bank transaction pointing at this ledger row
		if err := db.Model(&models.BankTransaction{}).
			Where("synced_to_id = ?", tx.ID).
			Update("synced_to_id", nil).Error; err != nil {
			return fmt.Errorf("unlink bank transactions: %w", err)
		}

		if err := db.Delete(&tx).Error; err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}

		var account models.Account
		if err := db.First(&account, tx.AccountID).Error; err != nil {
			return fmt.Errorf("load account %d: %w", tx.AccountID, err)
		}
		account.Balance = account.Balance.Sub(balanceDelta(tx.Type, tx.Amount))
		if err := db.Model(&models.Account{}).Where("id = ?", account.ID).
			Update("balance", account.Balance).Error; err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		return nil
	})
}

// Reconcile creates a ledger transaction absorbing a pending bank
// transaction and marks the source synced, as one atomic unit. Partial
// application (ledger row without status flip, or vice versa) must not
// survive an error.
func (s *Service) Reconcile(bankTx *models.BankTransaction, tx *models.Transaction) error {
	return s.DB.Transaction(func(db *gorm.DB) error {
		if bankTx.SyncStatus != models.SyncPending {
			return fmt.Errorf("bank transaction %s is %s, not pending", bankTx.ExternalID, bankTx.SyncStatus)
		}

		var account models.Account
		if err := db.Where("id = ? AND user_id = ?", tx.AccountID, tx.UserID).
			First(&account).Error; err != nil {
			return fmt.Errorf("load account %d: %w", tx.AccountID, err)
		}

		if err := db.Create(tx).Error; err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		account.Balance = account.Balance.Add(balanceDelta(tx.Type, tx.Amount))
		if err := db.Model(&models.Account{}).Where("id = ?", account.ID).
			Update("balance", account.Balance).Error; err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		bankTx.SyncedToID = &tx.ID
		bankTx.SyncStatus = models.SyncSynced
		if err := db.Save(bankTx).Error; err != nil {
			return fmt.Errorf("mark synced: %w", err)
		}
		return nil
	})
}
