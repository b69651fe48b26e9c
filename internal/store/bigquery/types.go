// Package bigquery exports completed session analyses to BigQuery for
// long-term reporting, alongside the in-memory store that serves the API.
package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

type SessionRow struct {
	SessionID string    `bigquery:"session_id"` // REQUIRED
	Filename  string    `bigquery:"filename"`
	RowCount  int64     `bigquery:"row_count"`
	Status    string    `bigquery:"status"`
	CreatedTS time.Time `bigquery:"created_ts"`
}

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	SessionID     string `bigquery:"session_id"`     // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"`

	Description    string              `bigquery:"description"`
	RawDescription bigquery.NullString `bigquery:"raw_description"`

	Amount     float64             `bigquery:"amount"`
	CategoryID bigquery.NullString `bigquery:"category_id"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

type AnomalyRow struct {
	SessionID     string `bigquery:"session_id"`     // REQUIRED
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	AnomalyType string `bigquery:"anomaly_type"`
	Severity    string `bigquery:"severity"`

	ExpectedValue float64 `bigquery:"expected_value"`
	ActualValue   float64 `bigquery:"actual_value"`
	Confidence    float64 `bigquery:"confidence"`

	Explanation string `bigquery:"explanation"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

type RecurringChargeRow struct {
	SessionID          string `bigquery:"session_id"` // REQUIRED
	DescriptionPattern string `bigquery:"description_pattern"`

	CategoryID bigquery.NullString `bigquery:"category_id"`

	AverageAmount   float64 `bigquery:"average_amount"`
	FrequencyDays   int64   `bigquery:"frequency_days"`
	OccurrenceCount int64   `bigquery:"occurrence_count"`

	FirstSeen civil.Date `bigquery:"first_seen"`
	LastSeen  civil.Date `bigquery:"last_seen"`

	IsGrayCharge bool    `bigquery:"is_gray_charge"`
	Confidence   float64 `bigquery:"confidence"`

	CreatedTS time.Time `bigquery:"created_ts"`
}
