// Package store defines persistence for sessions and their derived results.
package store

import (
	"context"

	"github.com/dkurbatov/spendlens/internal/domain"
)

// Store persists sessions, their transactions and the analysis outputs.
// Implementations must be safe for concurrent use across sessions.
type Store interface {
	SaveSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context) ([]*domain.Session, error)
	UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error

	SaveTransactions(ctx context.Context, sessionID string, txs []domain.Transaction) error
	ListTransactions(ctx context.Context, sessionID string) ([]domain.Transaction, error)

	SaveAnomalies(ctx context.Context, sessionID string, anomalies []domain.Anomaly) error
	ListAnomalies(ctx context.Context, sessionID string) ([]domain.Anomaly, error)
	// AnomalyTransactionIDs returns the already-flagged transaction IDs for
	// a session, used to seed detector deduplication.
	AnomalyTransactionIDs(ctx context.Context, sessionID string) (map[string]bool, error)

	// ReplaceRecurring swaps a session's recurring charges wholesale.
	// Recurrence mining is replace-on-rerun, never append.
	ReplaceRecurring(ctx context.Context, sessionID string, charges []domain.RecurringCharge) error
	ListRecurring(ctx context.Context, sessionID string) ([]domain.RecurringCharge, error)

	SaveInsights(ctx context.Context, sessionID string, insights []domain.Insight) error
	ListInsights(ctx context.Context, sessionID string) ([]domain.Insight, error)
}
