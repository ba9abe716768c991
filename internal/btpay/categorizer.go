// Package btpay detects, categorizes and reconciles BT Pay wallet
// transactions by matching merchant keywords in their descriptions.
package btpay

import (
	"regexp"
	"strings"
)

// walletMarkers flag a bank transaction as originating from the BT Pay
// mobile wallet rather than a card-present or transfer transaction.
var walletMarkers = []string{
	"bt pay",
	"portofel digital",
	"digital wallet",
	"wallet payment",
}

// keywordTable maps categories to merchant keywords. Scan order matters:
// the first category whose any keyword matches wins, so the table is an
// ordered slice, not a map.
type categoryKeywords struct {
	Category string
	Keywords []string
}

var keywordTable = []categoryKeywords{
	{"food", []string{
		"coffee", "restaurant", "pizza", "burger", "mcdonalds", "kfc",
		"starbucks", "subway", "cafe", "bar", "pub", "bistro", "grill",
	}},
	{"shopping", []string{
		"carrefour", "auchan", "lidl", "penny", "emag", "altex",
		"mall", "store", "shop", "market", "supermarket", "hypermarket",
	}},
	{"transport", []string{
		"uber", "bolt", "taxi", "gas station", "benzina", "carburant",
		"parking", "toll", "bus", "train", "metro", "transport",
	}},
	{"utilities", []string{
		"electric", "water", "gas", "internet", "phone", "utility",
		"enel", "eon", "vodafone", "orange", "telekom",
	}},
	{"entertainment", []string{
		"cinema", "movie", "theatre", "concert", "netflix", "spotify",
		"game", "steam", "playstation", "xbox", "museum",
	}},
	{"health", []string{
		"pharmacy", "doctor", "hospital", "clinic", "medical", "dentist",
		"healthcare", "apteka", "medic",
	}},
	{"fitness", []string{"gym", "fitness", "sport", "yoga", "trainer"}},
	{"education", []string{"school", "university", "course", "book", "library"}},
	{"travel", []string{"hotel", "airbnb", "booking", "airline", "flight", "tourism"}},
}

// Categories returns the known category names in table order.
func Categories() []string {
	names := make([]string, len(keywordTable))
	for i, entry := range keywordTable {
		names[i] = entry.Category
	}
	return names
}

var (
	merchantRe  = regexp.MustCompile(`(?i)(?:BT Pay|wallet payment|portofel digital|digital wallet)[:\s]*-?\s*([^,]+)`)
	timeTokenRe = regexp.MustCompile(`\d{2}:\d{2}|\d{4}-\d{2}-\d{2}`)
)

// IsWalletPayment reports whether the description marks a BT Pay wallet
// transaction. Pure predicate, case-insensitive.
func IsWalletPayment(description string) bool {
	if description == "" {
		return false
	}
	lower := strings.ToLower(description)
	for _, marker := range walletMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ExtractMerchant pulls the merchant name out of a BT Pay description
// ("BT Pay - Merchant Name"), stripping embedded time/date tokens. When
// no marker pattern matches, the raw description comes back unchanged.
func ExtractMerchant(description string) string {
	if description == "" {
		return ""
	}
	match := merchantRe.FindStringSubmatch(description)
	if match == nil {
		return description
	}
	merchant := strings.TrimSpace(match[1])
	merchant = strings.TrimSpace(timeTokenRe.ReplaceAllString(merchant, ""))
	return merchant
}

// GuessCategory scans the keyword table in order and returns the first
// category with a keyword contained in the lowered description or
// extracted merchant name. Empty result means uncategorized — callers
// must not treat that as an error. Ties break by table order, not by
// match specificity.
func GuessCategory(description string) string {
	if description == "" {
		return ""
	}
	lower := strings.ToLower(description)
	merchant := strings.ToLower(ExtractMerchant(description))

	for _, entry := range keywordTable {
		for _, keyword := range entry.Keywords {
			if strings.Contains(lower, keyword) || strings.Contains(merchant, keyword) {
				return entry.Category
			}
		}
	}
	return ""
}
