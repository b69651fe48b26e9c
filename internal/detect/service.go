// Package detect flags anomalous transactions within a single analysis
// session. It combines a per-category z-score detector for small batches with
// an isolation-forest ensemble for larger ones; a strategy selector routes
// each session to the appropriate path.
package detect

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dkurbatov/spendlens/internal/detect/iforest"
	"github.com/dkurbatov/spendlens/internal/domain"
)

// Thresholds shared by both detection paths.
const (
	// MaxAmountForAnalysis bounds the absolute amount considered by the
	// detectors. Larger values are treated as data-entry errors: excluded
	// from statistics and never flagged.
	MaxAmountForAnalysis = 50000

	// MinTransactionsForZScore is the per-category minimum for a valid
	// z-score test.
	MinTransactionsForZScore = 5

	// MaxZScore caps pathological z-scores.
	MaxZScore = 10.0

	// minBatchSize is the overall minimum for any anomaly detection.
	minBatchSize = 3

	// ensembleBatchSize is the categorized-transaction count at which the
	// multivariate path takes over from the statistical one.
	ensembleBatchSize = 50
)

// EnsembleScorer is the learning capability behind the multivariate path.
// A fresh scorer is fit per session and discarded afterwards.
type EnsembleScorer interface {
	Fit(data [][]float64) error
	// DecisionScores returns boundary-relative scores where negative means
	// anomalous, roughly within [-0.5, 0.5].
	DecisionScores(data [][]float64) ([]float64, error)
}

// ScorerFactory builds a new EnsembleScorer per detection run. A nil factory
// means the ensemble capability is unavailable and the statistical path is
// used regardless of batch size.
type ScorerFactory func() EnsembleScorer

// Service runs anomaly detection for one session at a time. It holds no
// cross-session state; concurrent invocations for different sessions are safe.
type Service struct {
	log       zerolog.Logger
	newScorer ScorerFactory
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithScorerFactory overrides how the multivariate scorer is built. Passing
// nil disables the ensemble path entirely.
func WithScorerFactory(f ScorerFactory) ServiceOption {
	return func(s *Service) { s.newScorer = f }
}

// NewService creates a detection service. By default the multivariate path is
// backed by an isolation forest with 100 trees, 5% contamination and a fixed
// seed, retrained on every session.
func NewService(log zerolog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		log: log,
		newScorer: func() EnsembleScorer {
			return iforest.New()
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// DetectAnomalies runs anomaly detection for a session and returns the newly
// created anomalies. categories maps category IDs to display names. existing
// holds transaction IDs already flagged for this session; those are never
// re-flagged, and the input map is not mutated.
//
// Only categorized transactions participate. Batches under 3 categorized
// transactions produce no anomalies. Batches of 50 or more use the ensemble
// path when available, everything else the z-score path.
func (s *Service) DetectAnomalies(
	ctx context.Context,
	sessionID string,
	txs []domain.Transaction,
	categories map[string]string,
	existing map[string]bool,
) ([]domain.Anomaly, error) {
	eligible := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.ID == "" {
			return nil, fmt.Errorf("DetectAnomalies: transaction with empty ID in session %s", sessionID)
		}
		if t.SessionID != sessionID {
			return nil, fmt.Errorf("DetectAnomalies: transaction %s belongs to session %s, not %s",
				t.ID, t.SessionID, sessionID)
		}
		if t.IsCategorized() {
			eligible = append(eligible, t)
		}
	}

	if len(eligible) < minBatchSize {
		return nil, nil
	}

	flagged := make(map[string]bool, len(existing))
	for id := range existing {
		flagged[id] = true
	}

	if len(eligible) >= ensembleBatchSize && s.newScorer != nil {
		s.log.Debug().
			Str("session_id", sessionID).
			Int("transactions", len(eligible)).
			Msg("Using multivariate anomaly detection")

		anomalies, err := s.detectMultivariate(sessionID, eligible, categories, flagged)
		if err == nil {
			return anomalies, nil
		}

		// Degraded capability is a normal fallback, not a failure.
		s.log.Warn().
			Err(err).
			Str("session_id", sessionID).
			Msg("Ensemble detection unavailable, falling back to statistical path")
	}

	s.log.Debug().
		Str("session_id", sessionID).
		Int("transactions", len(eligible)).
		Msg("Using statistical anomaly detection")

	return s.detectStatistical(sessionID, eligible, categories, flagged), nil
}
