// Package categorize assigns spending categories to transactions by keyword
// matching on the cleaned description.
package categorize

import (
	"strings"

	"github.com/dkurbatov/spendlens/internal/domain"
)

// Stock category IDs. Stable identifiers, safe to persist.
const (
	CategoryGroceries     = "groceries"
	CategoryDining        = "dining"
	CategoryTransport     = "transport"
	CategoryShopping      = "shopping"
	CategorySubscriptions = "subscriptions"
	CategoryUtilities     = "utilities"
	CategoryHealth        = "health"
	CategoryEntertainment = "entertainment"
	CategoryTravel        = "travel"
	CategoryIncome        = "income"
	CategoryOther         = "other"
)

// rule maps description keywords to a category. First match wins, so more
// specific rules come first.
type rule struct {
	categoryID string
	keywords   []string
}

var rules = []rule{
	{CategorySubscriptions, []string{
		"NETFLIX", "SPOTIFY", "HULU", "DISNEY", "HBO", "YOUTUBE PREMIUM",
		"APPLE.COM/BILL", "ICLOUD", "AUDIBLE", "KINDLE UNLIMITED",
		"PATREON", "SUBSTACK", "MEMBERSHIP", "SUBSCRIPTION",
	}},
	{CategoryGroceries, []string{
		"WHOLE FOODS", "TRADER JOE", "SAFEWAY", "KROGER", "ALDI",
		"COSTCO", "GROCERY", "SUPERMARKET", "MARKET",
	}},
	{CategoryDining, []string{
		"STARBUCKS", "MCDONALD", "CHIPOTLE", "RESTAURANT", "PIZZA",
		"COFFEE", "CAFE", "DOORDASH", "UBER EATS", "GRUBHUB", "BAKERY",
		"DINER", "BAR & GRILL",
	}},
	{CategoryTransport, []string{
		"UBER", "LYFT", "SHELL", "CHEVRON", "EXXON", "GAS STATION",
		"PARKING", "TRANSIT", "METRO", "TOLL",
	}},
	{CategoryTravel, []string{
		"AIRLINES", "AIRBNB", "HOTEL", "MARRIOTT", "HILTON", "EXPEDIA",
		"DELTA AIR", "UNITED AIR",
	}},
	{CategoryUtilities, []string{
		"ELECTRIC", "WATER DISTRICT", "COMCAST", "XFINITY", "VERIZON",
		"AT&T", "T-MOBILE", "INTERNET", "UTILITY",
	}},
	{CategoryHealth, []string{
		"PHARMACY", "CVS", "WALGREENS", "CLINIC", "MEDICAL", "DENTAL",
		"GYM", "FITNESS",
	}},
	{CategoryEntertainment, []string{
		"CINEMA", "AMC", "THEATER", "STEAM", "PLAYSTATION", "NINTENDO",
		"TICKETMASTER", "CONCERT",
	}},
	{CategoryShopping, []string{
		"AMAZON", "AMZN", "TARGET", "WALMART", "BEST BUY", "IKEA",
		"EBAY", "ETSY", "NIKE",
	}},
	{CategoryIncome, []string{
		"PAYROLL", "DIRECT DEP", "SALARY", "INTEREST PAYMENT", "REFUND",
	}},
}

// categoryNames maps category IDs to display names.
var categoryNames = map[string]string{
	CategoryGroceries:     "Groceries",
	CategoryDining:        "Dining",
	CategoryTransport:     "Transport",
	CategoryShopping:      "Shopping",
	CategorySubscriptions: "Subscriptions",
	CategoryUtilities:     "Utilities",
	CategoryHealth:        "Health",
	CategoryEntertainment: "Entertainment",
	CategoryTravel:        "Travel",
	CategoryIncome:        "Income",
	CategoryOther:         "Other",
}

// Categories returns the full reference taxonomy in a stable order.
func Categories() []domain.Category {
	ids := []string{
		CategoryGroceries, CategoryDining, CategoryTransport,
		CategoryShopping, CategorySubscriptions, CategoryUtilities,
		CategoryHealth, CategoryEntertainment, CategoryTravel,
		CategoryIncome, CategoryOther,
	}
	cats := make([]domain.Category, 0, len(ids))
	for _, id := range ids {
		cats = append(cats, domain.Category{ID: id, Name: categoryNames[id]})
	}
	return cats
}

// NameMap returns the id→name lookup the detectors and miner consume.
func NameMap() map[string]string {
	m := make(map[string]string, len(categoryNames))
	for id, name := range categoryNames {
		m[id] = name
	}
	return m
}

// Match returns the category ID for a description, or ("", false) when no
// rule applies. Income keywords only match credits, so a "REFUND PIZZA"
// charge stays in dining.
func Match(description string, amount float64) (string, bool) {
	upper := strings.ToUpper(description)

	for _, r := range rules {
		if r.categoryID == CategoryIncome && amount < 0 {
			continue
		}
		for _, kw := range r.keywords {
			if strings.Contains(upper, kw) {
				return r.categoryID, true
			}
		}
	}
	return "", false
}

// Apply assigns categories in place and returns how many transactions
// matched a rule. Unmatched transactions keep a nil category; downstream
// consumers decide how to treat them.
func Apply(txs []domain.Transaction) int {
	matched := 0
	for i := range txs {
		if id, ok := Match(txs[i].Description, txs[i].Amount); ok {
			categoryID := id
			txs[i].CategoryID = &categoryID
			matched++
		}
	}
	return matched
}
