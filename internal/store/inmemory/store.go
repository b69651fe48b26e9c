// Package inmemory is an in-memory implementation of store.Store.
// Data is lost on service restart - for persistence, use the BigQuery
// exporter alongside it.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dkurbatov/spendlens/internal/domain"
	"github.com/dkurbatov/spendlens/internal/store"
)

// Store keeps all session data in memory and is safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]*domain.Session
	transactions map[string][]domain.Transaction
	anomalies    map[string][]domain.Anomaly
	recurring    map[string][]domain.RecurringCharge
	insights     map[string][]domain.Insight
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		sessions:     make(map[string]*domain.Session),
		transactions: make(map[string][]domain.Transaction),
		anomalies:    make(map[string][]domain.Anomaly),
		recurring:    make(map[string][]domain.RecurringCharge),
		insights:     make(map[string][]domain.Insight),
	}
}

func (s *Store) SaveSession(ctx context.Context, session *domain.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external modifications.
	sessionCopy := *session
	s.sessions[session.ID] = &sessionCopy

	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	sessionCopy := *session
	return &sessionCopy, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessionCopy := *session
		result = append(result, &sessionCopy)
	}

	// Newest first for listing.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	session.Status = status
	return nil
}

func (s *Store) SaveTransactions(ctx context.Context, sessionID string, txs []domain.Transaction) error {
	for _, t := range txs {
		if t.SessionID != sessionID {
			return fmt.Errorf("transaction %s belongs to session %s, not %s", t.ID, t.SessionID, sessionID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[sessionID] = append([]domain.Transaction(nil), txs...)
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, sessionID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Transaction(nil), s.transactions[sessionID]...), nil
}

func (s *Store) SaveAnomalies(ctx context.Context, sessionID string, anomalies []domain.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// One anomaly per transaction per session.
	seen := make(map[string]bool, len(s.anomalies[sessionID]))
	for _, a := range s.anomalies[sessionID] {
		seen[a.TransactionID] = true
	}
	for _, a := range anomalies {
		if a.SessionID != sessionID {
			return fmt.Errorf("anomaly for transaction %s belongs to session %s, not %s",
				a.TransactionID, a.SessionID, sessionID)
		}
		if seen[a.TransactionID] {
			return fmt.Errorf("duplicate anomaly for transaction %s in session %s", a.TransactionID, sessionID)
		}
		seen[a.TransactionID] = true
	}

	s.anomalies[sessionID] = append(s.anomalies[sessionID], anomalies...)
	return nil
}

func (s *Store) ListAnomalies(ctx context.Context, sessionID string) ([]domain.Anomaly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Anomaly(nil), s.anomalies[sessionID]...), nil
}

func (s *Store) AnomalyTransactionIDs(ctx context.Context, sessionID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]bool, len(s.anomalies[sessionID]))
	for _, a := range s.anomalies[sessionID] {
		ids[a.TransactionID] = true
	}
	return ids, nil
}

func (s *Store) ReplaceRecurring(ctx context.Context, sessionID string, charges []domain.RecurringCharge) error {
	for _, c := range charges {
		if c.SessionID != sessionID {
			return fmt.Errorf("recurring charge %q belongs to session %s, not %s",
				c.DescriptionPattern, c.SessionID, sessionID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.recurring[sessionID] = append([]domain.RecurringCharge(nil), charges...)
	return nil
}

func (s *Store) ListRecurring(ctx context.Context, sessionID string) ([]domain.RecurringCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.RecurringCharge(nil), s.recurring[sessionID]...), nil
}

func (s *Store) SaveInsights(ctx context.Context, sessionID string, insights []domain.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insights[sessionID] = append([]domain.Insight(nil), insights...)
	return nil
}

func (s *Store) ListInsights(ctx context.Context, sessionID string) ([]domain.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Insight(nil), s.insights[sessionID]...), nil
}

// Ensure Store implements the persistence interface.
var _ store.Store = (*Store)(nil)
