package analysis

import (
	"bytes"
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/dkurbatov/spendlens/internal/detect"
	"github.com/dkurbatov/spendlens/internal/gcsarchive"
	"github.com/dkurbatov/spendlens/internal/ingest"
	"github.com/dkurbatov/spendlens/internal/insights"
	"github.com/dkurbatov/spendlens/internal/recurring"
	"github.com/dkurbatov/spendlens/internal/store"
)

// Deps bundles the collaborators every pipeline variant draws from.
// Archiver and Exporter are optional; nil disables those steps' work.
type Deps struct {
	Log       zerolog.Logger
	Store     store.Store
	Processor *ingest.Processor
	Detector  *detect.Service
	Miner     *recurring.Miner
	Generator *insights.Generator
	Archiver  *gcsarchive.Archiver
	Exporter  SessionExporter
}

// NewUploadPipeline is the standard flow for an uploaded CSV.
func NewUploadPipeline(d Deps) *Pipeline {
	return NewPipeline(d.Log, d.Store,
		&ParseCSVStep{Processor: d.Processor, Store: d.Store},
		&CategorizeStep{Store: d.Store},
		&ArchiveStep{Archiver: d.Archiver, Log: d.Log},
		&DetectAnomaliesStep{Detector: d.Detector, Store: d.Store},
		&DetectRecurringStep{Miner: d.Miner, Store: d.Store},
		&InsightsStep{Generator: d.Generator, Store: d.Store},
		&ExportStep{Exporter: d.Exporter, Log: d.Log},
		&MarkCompleteStep{Store: d.Store},
	)
}

// NewSeededPipeline analyzes a pre-built transaction batch (demo sessions),
// skipping the CSV parse and archive stages.
func NewSeededPipeline(d Deps) *Pipeline {
	return NewPipeline(d.Log, d.Store,
		&SeedSessionStep{Store: d.Store},
		&CategorizeStep{Store: d.Store},
		&DetectAnomaliesStep{Detector: d.Detector, Store: d.Store},
		&DetectRecurringStep{Miner: d.Miner, Store: d.Store},
		&InsightsStep{Generator: d.Generator, Store: d.Store},
		&ExportStep{Exporter: d.Exporter, Log: d.Log},
		&MarkCompleteStep{Store: d.Store},
	)
}

// SeedSessionStep persists a session and transactions that were built
// outside the pipeline (synthetic demo data).
type SeedSessionStep struct {
	Store store.Store
}

func (s *SeedSessionStep) Name() string { return "seed_session" }

func (s *SeedSessionStep) Execute(ctx context.Context, state *State) error {
	if err := s.Store.SaveSession(ctx, &state.Session); err != nil {
		return err
	}
	return s.Store.SaveTransactions(ctx, state.Session.ID, state.Transactions)
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
