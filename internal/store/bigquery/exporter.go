package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dkurbatov/spendlens/internal/domain"
)

const (
	sessionsTable     = "sessions"
	transactionsTable = "transactions"
	anomaliesTable    = "anomalies"
	recurringTable    = "recurring_charges"
)

// Exporter streams completed analyses into a BigQuery dataset.
type Exporter struct {
	client    *bigquery.Client
	datasetID string
}

// NewExporter creates an exporter bound to one project and dataset.
func NewExporter(ctx context.Context, projectID, datasetID string) (*Exporter, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: bigquery client: %w", err)
	}
	return &Exporter{client: client, datasetID: datasetID}, nil
}

func (e *Exporter) Close() error {
	return e.client.Close()
}

// ExportSession writes a session and all of its derived records. Each table
// is written with a streaming inserter; partial failures leave earlier
// tables populated, so callers should treat the export as at-least-once.
func (e *Exporter) ExportSession(
	ctx context.Context,
	session *domain.Session,
	txs []domain.Transaction,
	anomalies []domain.Anomaly,
	charges []domain.RecurringCharge,
) error {
	now := time.Now().UTC()

	sessionRow := &SessionRow{
		SessionID: session.ID,
		Filename:  session.Filename,
		RowCount:  int64(session.RowCount),
		Status:    string(session.Status),
		CreatedTS: session.CreatedAt,
	}
	if err := e.put(ctx, sessionsTable, []*SessionRow{sessionRow}); err != nil {
		return err
	}

	txRows := make([]*TransactionRow, 0, len(txs))
	for _, t := range txs {
		txRows = append(txRows, &TransactionRow{
			TransactionID:   t.ID,
			SessionID:       t.SessionID,
			TransactionDate: civil.DateOf(t.Date),
			Description:     t.Description,
			RawDescription:  nullString(t.RawDescription),
			Amount:          t.Amount,
			CategoryID:      nullStringPtr(t.CategoryID),
			CreatedTS:       now,
		})
	}
	if len(txRows) > 0 {
		if err := e.put(ctx, transactionsTable, txRows); err != nil {
			return err
		}
	}

	anomalyRows := make([]*AnomalyRow, 0, len(anomalies))
	for _, a := range anomalies {
		anomalyRows = append(anomalyRows, &AnomalyRow{
			SessionID:     a.SessionID,
			TransactionID: a.TransactionID,
			AnomalyType:   string(a.AnomalyType),
			Severity:      string(a.Severity),
			ExpectedValue: a.ExpectedValue,
			ActualValue:   a.ActualValue,
			Confidence:    a.Confidence,
			Explanation:   a.Explanation,
			CreatedTS:     now,
		})
	}
	if len(anomalyRows) > 0 {
		if err := e.put(ctx, anomaliesTable, anomalyRows); err != nil {
			return err
		}
	}

	chargeRows := make([]*RecurringChargeRow, 0, len(charges))
	for _, c := range charges {
		chargeRows = append(chargeRows, &RecurringChargeRow{
			SessionID:          c.SessionID,
			DescriptionPattern: c.DescriptionPattern,
			CategoryID:         nullStringPtr(c.CategoryID),
			AverageAmount:      c.AverageAmount,
			FrequencyDays:      int64(c.FrequencyDays),
			OccurrenceCount:    int64(c.OccurrenceCount),
			FirstSeen:          civil.DateOf(c.FirstSeen),
			LastSeen:           civil.DateOf(c.LastSeen),
			IsGrayCharge:       c.IsGrayCharge,
			Confidence:         c.Confidence,
			CreatedTS:          now,
		})
	}
	if len(chargeRows) == 0 {
		return nil
	}
	return e.put(ctx, recurringTable, chargeRows)
}

func (e *Exporter) put(ctx context.Context, table string, rows interface{}) error {
	inserter := e.client.Dataset(e.datasetID).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("ExportSession: inserting into %s: %w", table, err)
	}
	return nil
}

// QueryGrayCharges returns every exported gray charge across sessions within
// a date window, newest first. Used for cross-session reporting.
func (e *Exporter) QueryGrayCharges(ctx context.Context, since time.Time) ([]*RecurringChargeRow, error) {
	q := e.client.Query(fmt.Sprintf(`
		SELECT
			session_id,
			description_pattern,
			category_id,
			average_amount,
			frequency_days,
			occurrence_count,
			first_seen,
			last_seen,
			is_gray_charge,
			confidence,
			created_ts
		FROM %s.%s
		WHERE is_gray_charge = TRUE
		  AND created_ts >= @since
		ORDER BY created_ts DESC
	`, e.datasetID, recurringTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "since", Value: since},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryGrayCharges: query read: %w", err)
	}

	var rows []*RecurringChargeRow
	for {
		var r RecurringChargeRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryGrayCharges: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullStringPtr(s *string) bigquery.NullString {
	if s == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}
