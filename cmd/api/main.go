package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dkurbatov/spendlens/internal/analysis"
	"github.com/dkurbatov/spendlens/internal/api/handlers"
	"github.com/dkurbatov/spendlens/internal/api/middleware"
	"github.com/dkurbatov/spendlens/internal/detect"
	"github.com/dkurbatov/spendlens/internal/gcsarchive"
	"github.com/dkurbatov/spendlens/internal/ingest"
	"github.com/dkurbatov/spendlens/internal/insights"
	"github.com/dkurbatov/spendlens/internal/logger"
	"github.com/dkurbatov/spendlens/internal/recurring"
	bqstore "github.com/dkurbatov/spendlens/internal/store/bigquery"
	"github.com/dkurbatov/spendlens/internal/store/inmemory"
)

func main() {
	// .env is optional; real deployments use actual environment variables.
	_ = godotenv.Load()

	var (
		port      = flag.String("port", "8080", "HTTP server port")
		bucket    = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for CSV archival (or set GCS_BUCKET env)")
		bqProject = flag.String("bq-project", os.Getenv("BQ_PROJECT"), "BigQuery project for session export (or set BQ_PROJECT env)")
		bqDataset = flag.String("bq-dataset", envOr("BQ_DATASET", "spendlens"), "BigQuery dataset for session export")
	)
	flag.Parse()

	log := logger.New()

	ctx := context.Background()
	st := inmemory.NewStore()

	deps := analysis.Deps{
		Log:       log,
		Store:     st,
		Processor: ingest.NewProcessor(log),
		Detector:  detect.NewService(log),
		Miner:     recurring.NewMiner(log, recurring.DefaultConfig()),
		Generator: insights.NewGenerator(log),
	}

	if *bucket != "" {
		deps.Archiver = gcsarchive.NewArchiver(*bucket)
	} else {
		log.Warn().Msg("No GCS bucket configured - CSV archival disabled")
	}

	var grayLister handlers.GrayChargeLister
	if *bqProject != "" {
		exporter, err := bqstore.NewExporter(ctx, *bqProject, *bqDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery exporter")
		}
		defer exporter.Close()
		deps.Exporter = exporter
		grayLister = exporter
	} else {
		log.Warn().Msg("No BigQuery project configured - session export disabled")
	}

	sessionsHandler := handlers.NewSessionsHandler(st, deps, log)
	resultsHandler := handlers.NewResultsHandler(st, log)
	categoriesHandler := handlers.NewCategoriesHandler(log)
	reportsHandler := handlers.NewReportsHandler(grayLister, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			sessionsHandler.ListSessions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sessions/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sessionsHandler.UploadCSV(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sessions/sample", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sessionsHandler.CreateSample(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
		sessionID, resource, _ := strings.Cut(rest, "/")
		if sessionID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Session ID is required")
			return
		}

		switch resource {
		case "":
			sessionsHandler.GetSession(w, r, sessionID)
		case "transactions":
			resultsHandler.ListTransactions(w, r, sessionID)
		case "anomalies":
			resultsHandler.ListAnomalies(w, r, sessionID)
		case "recurring":
			resultsHandler.ListRecurring(w, r, sessionID)
		case "insights":
			resultsHandler.ListInsights(w, r, sessionID)
		default:
			middleware.WriteError(w, http.StatusNotFound, "Unknown resource")
		}
	})

	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			categoriesHandler.ListCategories(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/reports/gray-charges", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reportsHandler.GrayCharges(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// RequestID runs before Logger so request logs carry the ID.
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
