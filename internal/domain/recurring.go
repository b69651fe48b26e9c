package domain

import "time"

// RecurringCharge is a detected subscription-like charge pattern: a group of
// at least two spend transactions with the same normalized description and a
// regular weekly or monthly cadence.
//
// A "gray charge" is a small recurring debit a user is likely to overlook.
type RecurringCharge struct {
	SessionID          string  `json:"session_id"`
	DescriptionPattern string  `json:"description_pattern"`
	CategoryID         *string `json:"category_id"`

	AverageAmount float64 `json:"average_amount"` // mean of the group's signed amounts
	FrequencyDays int     `json:"frequency_days"` // 7 for weekly, 30 for monthly

	OccurrenceCount int       `json:"occurrence_count"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`

	IsGrayCharge bool    `json:"is_gray_charge"`
	Confidence   float64 `json:"confidence"` // in [0.5, 1], higher for more regular intervals
}

// Insight is a short piece of generated financial advice for a session.
type Insight struct {
	SessionID string `json:"session_id"`
	Type      string `json:"type"` // e.g. "spending_summary", "anomaly_review", "gray_charges"
	Title     string `json:"title"`
	Body      string `json:"body"`
}
