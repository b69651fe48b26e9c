// Package analysis wires the full per-session flow: parse, categorize,
// archive, detect, mine, persist, summarize. Each stage is a pipeline step
// sharing one state struct, so surfaces (API, CLI) can compose the flow they
// need.
package analysis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dkurbatov/spendlens/internal/categorize"
	"github.com/dkurbatov/spendlens/internal/detect"
	"github.com/dkurbatov/spendlens/internal/domain"
	"github.com/dkurbatov/spendlens/internal/gcsarchive"
	"github.com/dkurbatov/spendlens/internal/ingest"
	"github.com/dkurbatov/spendlens/internal/insights"
	"github.com/dkurbatov/spendlens/internal/recurring"
	"github.com/dkurbatov/spendlens/internal/store"
)

// Step is a single stage in the analysis pipeline.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// State holds the shared state across all pipeline steps.
type State struct {
	Filename string
	CSVBytes []byte

	Session      domain.Session
	Transactions []domain.Transaction
	Categories   map[string]string

	ArchiveURI string

	Anomalies []domain.Anomaly
	Recurring []domain.RecurringCharge
	Insights  []domain.Insight
}

// Pipeline executes a sequence of steps in order. A step failure marks the
// session failed (when one exists) and stops execution.
type Pipeline struct {
	log   zerolog.Logger
	store store.Store
	steps []Step
}

func NewPipeline(log zerolog.Logger, st store.Store, steps ...Step) *Pipeline {
	return &Pipeline{log: log, store: st, steps: steps}
}

// Execute runs all steps sequentially against the shared state.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			p.markFailed(ctx, state)
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		p.log.Debug().
			Str("session_id", state.Session.ID).
			Str("step", step.Name()).
			Msg("Pipeline step complete")
	}
	return nil
}

func (p *Pipeline) markFailed(ctx context.Context, state *State) {
	if state.Session.ID == "" {
		return
	}
	if err := p.store.UpdateSessionStatus(ctx, state.Session.ID, domain.SessionStatusFailed); err != nil {
		p.log.Error().
			Err(err).
			Str("session_id", state.Session.ID).
			Msg("Failed to mark session as failed")
	}
}

// ParseCSVStep parses the uploaded CSV into a session with transactions and
// saves both.
type ParseCSVStep struct {
	Processor *ingest.Processor
	Store     store.Store
}

func (s *ParseCSVStep) Name() string { return "parse_csv" }

func (s *ParseCSVStep) Execute(ctx context.Context, state *State) error {
	result, err := s.Processor.ProcessCSV(bytesReader(state.CSVBytes), state.Filename)
	if err != nil {
		return err
	}

	state.Session = result.Session
	state.Transactions = result.Transactions

	if err := s.Store.SaveSession(ctx, &state.Session); err != nil {
		return err
	}
	return s.Store.SaveTransactions(ctx, state.Session.ID, state.Transactions)
}

// CategorizeStep assigns categories in place and re-saves the transactions.
type CategorizeStep struct {
	Store store.Store
}

func (s *CategorizeStep) Name() string { return "categorize" }

func (s *CategorizeStep) Execute(ctx context.Context, state *State) error {
	categorize.Apply(state.Transactions)
	state.Categories = categorize.NameMap()
	return s.Store.SaveTransactions(ctx, state.Session.ID, state.Transactions)
}

// ArchiveStep uploads the raw CSV to GCS. With no archiver configured the
// step is a no-op, keeping local runs cloud-free.
type ArchiveStep struct {
	Archiver *gcsarchive.Archiver
	Log      zerolog.Logger
}

func (s *ArchiveStep) Name() string { return "archive" }

func (s *ArchiveStep) Execute(ctx context.Context, state *State) error {
	if s.Archiver == nil || len(state.CSVBytes) == 0 {
		return nil
	}

	uri, err := s.Archiver.ArchiveCSV(ctx, state.Session.ID, state.Filename, state.CSVBytes)
	if err != nil {
		// Archival is best effort; the analysis itself must not die on it.
		s.Log.Warn().
			Err(err).
			Str("session_id", state.Session.ID).
			Msg("CSV archival failed, continuing without archive")
		return nil
	}
	state.ArchiveURI = uri
	return nil
}

// DetectAnomaliesStep runs anomaly detection seeded with the session's
// already-flagged transactions and saves the new anomalies.
type DetectAnomaliesStep struct {
	Detector *detect.Service
	Store    store.Store
}

func (s *DetectAnomaliesStep) Name() string { return "detect_anomalies" }

func (s *DetectAnomaliesStep) Execute(ctx context.Context, state *State) error {
	existing, err := s.Store.AnomalyTransactionIDs(ctx, state.Session.ID)
	if err != nil {
		return err
	}

	anomalies, err := s.Detector.DetectAnomalies(ctx, state.Session.ID, state.Transactions, state.Categories, existing)
	if err != nil {
		return err
	}
	state.Anomalies = anomalies

	if len(anomalies) == 0 {
		return nil
	}
	return s.Store.SaveAnomalies(ctx, state.Session.ID, anomalies)
}

// DetectRecurringStep mines recurring charges and replaces the session's
// stored set.
type DetectRecurringStep struct {
	Miner *recurring.Miner
	Store store.Store
}

func (s *DetectRecurringStep) Name() string { return "detect_recurring" }

func (s *DetectRecurringStep) Execute(ctx context.Context, state *State) error {
	charges, err := s.Miner.DetectRecurring(ctx, state.Session.ID, state.Transactions, state.Categories)
	if err != nil {
		return err
	}
	state.Recurring = charges
	return s.Store.ReplaceRecurring(ctx, state.Session.ID, charges)
}

// InsightsStep generates and saves natural-language takeaways.
type InsightsStep struct {
	Generator *insights.Generator
	Store     store.Store
}

func (s *InsightsStep) Name() string { return "insights" }

func (s *InsightsStep) Execute(ctx context.Context, state *State) error {
	result, err := s.Generator.Generate(ctx, state.Session.ID,
		state.Transactions, state.Anomalies, state.Recurring, state.Categories)
	if err != nil {
		return err
	}
	state.Insights = result
	if len(result) == 0 {
		return nil
	}
	return s.Store.SaveInsights(ctx, state.Session.ID, result)
}

// ExportStep streams the finished analysis to an external sink (BigQuery).
// Optional, like ArchiveStep.
type ExportStep struct {
	Exporter SessionExporter
	Log      zerolog.Logger
}

// SessionExporter is the external reporting sink.
type SessionExporter interface {
	ExportSession(ctx context.Context, session *domain.Session, txs []domain.Transaction,
		anomalies []domain.Anomaly, charges []domain.RecurringCharge) error
}

func (s *ExportStep) Name() string { return "export" }

func (s *ExportStep) Execute(ctx context.Context, state *State) error {
	if s.Exporter == nil {
		return nil
	}
	if err := s.Exporter.ExportSession(ctx, &state.Session, state.Transactions, state.Anomalies, state.Recurring); err != nil {
		// Reporting export is best effort.
		s.Log.Warn().
			Err(err).
			Str("session_id", state.Session.ID).
			Msg("Session export failed, continuing")
	}
	return nil
}

// MarkCompleteStep flips the session to completed.
type MarkCompleteStep struct {
	Store store.Store
}

func (s *MarkCompleteStep) Name() string { return "mark_complete" }

func (s *MarkCompleteStep) Execute(ctx context.Context, state *State) error {
	if err := s.Store.UpdateSessionStatus(ctx, state.Session.ID, domain.SessionStatusCompleted); err != nil {
		return err
	}
	state.Session.Status = domain.SessionStatusCompleted
	return nil
}
