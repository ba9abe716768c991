package btpay

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/parjanul123/MoneyManager/internal/ledger"
	"github.com/parjanul123/MoneyManager/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service reconciles pending BT Pay transactions and computes read-side
// aggregates. Aggregation always recomputes from the stored description
// strings: categorization results are never persisted on the bank
// transaction row, so fixing the keyword table fixes history.
type Service struct {
	DB     *gorm.DB
	Ledger *ledger.Service
}

func NewService(db *gorm.DB, ledgerSvc *ledger.Service) *Service {
	return &Service{DB: db, Ledger: ledgerSvc}
}

// titleCase uppercases the first letter of a category name ("food" ->
// "Food") for the Category row.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// CategorizeTransaction auto-categorizes one pending BT Pay transaction:
// guess a category, resolve-or-create the Category row, pick the user's
// first account with the transaction's currency, then atomically create
// the expense ledger transaction and mark the source synced. Returns
// false (no error) when the transaction is not a wallet payment, no
// category matches, or no account has the currency — those stay pending.
func (s *Service) CategorizeTransaction(bankTx *models.BankTransaction) (bool, error) {
	if !IsWalletPayment(bankTx.Description) {
		return false, nil
	}

	categoryName := GuessCategory(bankTx.Description)
	if categoryName == "" {
		log.Printf("btpay: could not auto-categorize bank transaction %s", bankTx.ExternalID)
		return false, nil
	}

	var category models.Category
	err := s.DB.Where("name = ?", titleCase(categoryName)).
		Attrs(models.Category{
			Type:        models.TypeExpense,
			Description: "BT Pay - " + categoryName,
		}).
		FirstOrCreate(&category, models.Category{Name: titleCase(categoryName)}).Error
	if err != nil {
		return false, fmt.Errorf("find or create category %q: %w", categoryName, err)
	}

	var account models.Account
	err = s.DB.Where("user_id = ? AND currency = ?", bankTx.UserID, bankTx.Currency).
		Order("id ASC").First(&account).Error
	if err == gorm.ErrRecordNotFound {
		log.Printf("btpay: no %s account for user %d, leaving %s pending",
			bankTx.Currency, bankTx.UserID, bankTx.ExternalID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load account: %w", err)
	}

	tx := &models.Transaction{
		UserID:      bankTx.UserID,
		AccountID:   account.ID,
		CategoryID:  &category.ID,
		Type:        models.TypeExpense,
		Amount:      bankTx.Amount.Abs(),
		Description: ExtractMerchant(bankTx.Description),
		Date:        bankTx.Date,
	}
	if err := s.Ledger.Reconcile(bankTx, tx); err != nil {
		return false, fmt.Errorf("reconcile %s: %w", bankTx.ExternalID, err)
	}

	log.Printf("btpay: auto-categorized %s as %s", bankTx.ExternalID, category.Name)
	return true, nil
}

// AutoCategorizeAll runs CategorizeTransaction over every pending bank
// transaction of the user and returns how many were committed. Failures
// on individual rows are logged and skipped, never aborting the batch.
func (s *Service) AutoCategorizeAll(userID uint) int {
	var pending []models.BankTransaction
	err := s.DB.Where("user_id = ? AND sync_status = ? AND synced_to_id IS NULL",
		userID, models.SyncPending).
		Where("description <> ''").
		Find(&pending).Error
	if err != nil {
		log.Printf("btpay: load pending for user %d: %v", userID, err)
		return 0
	}

	categorized := 0
	for i := range pending {
		ok, err := s.CategorizeTransaction(&pending[i])
		if err != nil {
			log.Printf("btpay: categorize %s: %v", pending[i].ExternalID, err)
			continue
		}
		if ok {
			categorized++
		}
	}
	return categorized
}

// CategoryStat aggregates count and absolute sum for one category.
type CategoryStat struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// MerchantStat aggregates one merchant's spend.
type MerchantStat struct {
	Name  string          `json:"name"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Stats is the recompute-on-read aggregate over a day window.
type Stats struct {
	TotalTransactions int                     `json:"total_transactions"`
	TotalAmount       decimal.Decimal         `json:"total_amount"`
	ByCategory        map[string]CategoryStat `json:"transactions_by_category"`
	TopMerchants      []MerchantStat          `json:"top_merchants"`
}

// syncedWalletPayments loads the user's synced BT Pay transactions since
// the cutoff, preserving query order.
func (s *Service) syncedWalletPayments(userID uint, since time.Time) ([]models.BankTransaction, error) {
	var rows []models.BankTransaction
	err := s.DB.Where("user_id = ? AND sync_status = ? AND date >= ?",
		userID, models.SyncSynced, since).
		Where("description <> ''").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load synced transactions: %w", err)
	}

	wallet := rows[:0]
	for _, row := range rows {
		if IsWalletPayment(row.Description) {
			wallet = append(wallet, row)
		}
	}
	return wallet, nil
}

// GetStats computes BT Pay statistics over the last N days: totals,
// per-category breakdown and top-10 merchants by spend (descending sum,
// insertion order on ties).
func (s *Service) GetStats(userID uint, days int) (*Stats, error) {
	since := time.Now().AddDate(0, 0, -days)
	wallet, err := s.syncedWalletPayments(userID, since)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalTransactions: len(wallet),
		TotalAmount:       decimal.Zero,
		ByCategory:        make(map[string]CategoryStat),
	}

	merchantOrder := []string{}
	merchants := make(map[string]*MerchantStat)

	for _, tx := range wallet {
		amount := tx.Amount.Abs()
		stats.TotalAmount = stats.TotalAmount.Add(amount)

		category := GuessCategory(tx.Description)
		if category == "" {
			category = "other"
		}
		cs := stats.ByCategory[category]
		cs.Count++
		cs.Total = cs.Total.Add(amount)
		stats.ByCategory[category] = cs

		merchant := ExtractMerchant(tx.Description)
		if merchant == "" {
			merchant = "Unknown"
		}
		ms, ok := merchants[merchant]
		if !ok {
			ms = &MerchantStat{Name: merchant}
			merchants[merchant] = ms
			merchantOrder = append(merchantOrder, merchant)
		}
		ms.Count++
		ms.Total = ms.Total.Add(amount)
	}

	top := make([]MerchantStat, 0, len(merchantOrder))
	for _, name := range merchantOrder {
		top = append(top, *merchants[name])
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Total.GreaterThan(top[j].Total)
	})
	if len(top) > 10 {
		top = top[:10]
	}
	stats.TopMerchants = top

	return stats, nil
}

// PendingItem is one pending wallet payment awaiting review.
type PendingItem struct {
	ID            uint            `json:"id"`
	Merchant      string          `json:"merchant"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Date          time.Time       `json:"date"`
	CategoryGuess string          `json:"category_guess"`
	Description   string          `json:"description"`
}

// PendingWalletPayments lists up to limit pending BT Pay transactions,
// newest first, with their category guesses.
func (s *Service) PendingWalletPayments(userID uint, limit int) ([]PendingItem, decimal.Decimal, error) {
	var rows []models.BankTransaction
	err := s.DB.Where("user_id = ? AND sync_status = ?", userID, models.SyncPending).
		Where("description <> ''").
		Order("date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("load pending transactions: %w", err)
	}

	items := []PendingItem{}
	total := decimal.Zero
	for _, row := range rows {
		if !IsWalletPayment(row.Description) {
			continue
		}
		total = total.Add(row.Amount.Abs())
		if limit <= 0 || len(items) < limit {
			items = append(items, PendingItem{
				ID:            row.ID,
				Merchant:      ExtractMerchant(row.Description),
				Amount:        row.Amount.Abs(),
				Currency:      row.Currency,
				Date:          row.Date,
				CategoryGuess: GuessCategory(row.Description),
				Description:   row.Description,
			})
		}
	}
	return items, total, nil
}

// PendingCount counts pending wallet payments.
func (s *Service) PendingCount(userID uint) (int, error) {
	var rows []models.BankTransaction
	err := s.DB.Where("user_id = ? AND sync_status = ?", userID, models.SyncPending).
		Where("description <> ''").
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	count := 0
	for _, row := range rows {
		if IsWalletPayment(row.Description) {
			count++
		}
	}
	return count, nil
}

// HourBucket is one slot of the 24-hour histogram.
type HourBucket struct {
	Hour      int             `json:"hour"`
	Timestamp time.Time       `json:"timestamp"`
	Count     int             `json:"count"`
	Amount    decimal.Decimal `json:"amount"`
}

// HourlySummary buckets the last 24 hours of synced wallet payments.
func (s *Service) HourlySummary(userID uint) ([]HourBucket, error) {
	now := time.Now()
	wallet, err := s.syncedWalletPayments(userID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	buckets := make([]HourBucket, 0, 24)
	for i := 24; i > 0; i-- {
		start := now.Add(-time.Duration(i) * time.Hour)
		end := start.Add(time.Hour)

		bucket := HourBucket{Hour: start.Hour(), Timestamp: start, Amount: decimal.Zero}
		for _, tx := range wallet {
			if !tx.Date.Before(start) && tx.Date.Before(end) {
				bucket.Count++
				bucket.Amount = bucket.Amount.Add(tx.Amount.Abs())
			}
		}
		buckets = append(buckets, bucket)
	}
	return buckets, nil
}

// LiveTransaction is one wallet payment in the live feed, any status
// except ignored.
type LiveTransaction struct {
	ID          uint            `json:"id"`
	Merchant    string          `json:"merchant"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Date        time.Time       `json:"date"`
	SyncStatus  string          `json:"sync_status"`
	Description string          `json:"description"`
}

// LiveTransactions lists the newest wallet payments for the live feed.
func (s *Service) LiveTransactions(userID uint, limit int) ([]LiveTransaction, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.BankTransaction
	err := s.DB.Where("user_id = ? AND sync_status <> ?", userID, models.SyncIgnored).
		Where("description <> ''").
		Order("date DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load live transactions: %w", err)
	}

	items := []LiveTransaction{}
	for _, row := range rows {
		if !IsWalletPayment(row.Description) {
			continue
		}
		items = append(items, LiveTransaction{
			ID:          row.ID,
			Merchant:    ExtractMerchant(row.Description),
			Category:    GuessCategory(row.Description),
			Amount:      row.Amount.Abs(),
			Currency:    row.Currency,
			Date:        row.Date,
			SyncStatus:  row.SyncStatus,
			Description: row.Description,
		})
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

// MerchantDetail summarizes all synced wallet payments whose merchant
// name contains the given name (case-insensitive).
type MerchantDetail struct {
	Merchant          string                   `json:"merchant"`
	TotalTransactions int                      `json:"total_transactions"`
	TotalSpent        decimal.Decimal          `json:"total_spent"`
	Average           decimal.Decimal          `json:"average_transaction"`
	Currency          string                   `json:"currency"`
	Transactions      []models.BankTransaction `json:"transactions"`
}

// GetMerchantDetail collects spend history for one merchant.
func (s *Service) GetMerchantDetail(userID uint, name string) (*MerchantDetail, error) {
	var rows []models.BankTransaction
	err := s.DB.Where("user_id = ? AND sync_status = ?", userID, models.SyncSynced).
		Where("description <> ''").
		Order("date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load synced transactions: %w", err)
	}

	nameLower := strings.ToLower(name)
	detail := &MerchantDetail{Merchant: name, TotalSpent: decimal.Zero, Currency: "RON"}
	for _, row := range rows {
		if !IsWalletPayment(row.Description) {
			continue
		}
		if !strings.Contains(strings.ToLower(ExtractMerchant(row.Description)), nameLower) {
			continue
		}
		detail.TotalTransactions++
		detail.TotalSpent = detail.TotalSpent.Add(row.Amount.Abs())
		if len(detail.Transactions) < 50 {
			detail.Transactions = append(detail.Transactions, row)
		}
		detail.Currency = row.Currency
	}
	if detail.TotalTransactions > 0 {
		detail.Average = detail.TotalSpent.Div(decimal.NewFromInt(int64(detail.TotalTransactions))).Round(2)
	}
	return detail, nil
}
