package domain

import (
	"time"
)

// Transaction represents one normalized transaction within an analysis session.
// This is a domain struct, not a storage row; the store layer maps it into its
// own schema. Amount is signed: positive for money IN, negative for money OUT.
type Transaction struct {
	ID        string    `json:"id"`         // unique transaction identifier
	SessionID string    `json:"session_id"` // session this transaction belongs to
	Date      time.Time `json:"date"`       // transaction date (time component is ignored)

	Description    string `json:"description"`     // cleaned description, used for all pattern matching
	RawDescription string `json:"raw_description"` // description as it appeared in the source file

	Amount     float64 `json:"amount"`      // signed amount (negative = spend)
	CategoryID *string `json:"category_id"` // assigned category, nil if uncategorized
}

// IsSpend reports whether the transaction is a debit.
func (t Transaction) IsSpend() bool {
	return t.Amount < 0
}

// IsCategorized reports whether a category has been assigned.
func (t Transaction) IsCategorized() bool {
	return t.CategoryID != nil && *t.CategoryID != ""
}
