package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/LambaLab/abudhabi-sales-explorer/api/handlers"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/analyst"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/duck"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/feed"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/logger"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/metrics"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr      = "0.0.0.0:8080"
	defaultMetricsAddr     = "0.0.0.0:9090"
	defaultShutdownTimeout = 10 * time.Second
	defaultMetaTTL         = time.Hour
	defaultIntentModel     = "claude-haiku-4-5"
	defaultExplainModel    = "claude-opus-4-5"
	defaultShareBaseURL    = "http://localhost:5173"
	defaultAllowedOrigin   = "http://localhost:5173"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics (set to empty string to disable)")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", defaultShutdownTimeout, "Server shutdown timeout")
	csvPathFlag := flag.String("dataset-csv", "data/transactions.csv", "Path to the sales transactions CSV (or set DATASET_CSV env var)")
	dataDirFlag := flag.String("data-dir", ".data", "Directory for persisted conversation state")
	metaTTLFlag := flag.Duration("meta-ttl", defaultMetaTTL, "Dataset metadata cache TTL")
	intentModelFlag := flag.String("intent-model", defaultIntentModel, "Anthropic model for intent interpretation")
	explainModelFlag := flag.String("explain-model", defaultExplainModel, "Anthropic model for explanations")
	shareBaseURLFlag := flag.String("share-base-url", defaultShareBaseURL, "Base URL for share links")
	allowedOriginFlag := flag.String("allowed-origin", defaultAllowedOrigin, "CORS allowed origin")
	flag.Parse()

	// Override flags with environment variables if set
	if envCSV := os.Getenv("DATASET_CSV"); envCSV != "" {
		*csvPathFlag = envCSV
	}
	if envDataDir := os.Getenv("DATA_DIR"); envDataDir != "" {
		*dataDirFlag = envDataDir
	}

	log := logger.New(*verboseFlag)

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY must be set")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigCh
		log.Info("server: received signal", "signal", sig.String())
		cancel()
	}()

	var metricsServerErrCh = make(chan error, 1)
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				metricsServerErrCh <- err
				return
			}
		}()
	}

	dataset, err := duck.NewDataset(ctx, log, *csvPathFlag)
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() {
		if err := dataset.Close(); err != nil {
			log.Error("failed to close dataset", "error", err)
		}
	}()

	executor, err := duck.NewExecutor(duck.Config{Logger: log, DB: dataset})
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}

	metaCache := duck.NewMetaCache(log, dataset, *metaTTLFlag)
	defer metaCache.Stop()

	intents, err := analyst.NewIntentService(analyst.IntentConfig{
		Logger: log,
		LLM:    analyst.NewAnthropicClient(anthropic.Model(*intentModelFlag)),
	})
	if err != nil {
		return fmt.Errorf("failed to create intent service: %w", err)
	}
	explainer, err := analyst.NewExplainer(analyst.ExplainConfig{
		Logger: log,
		LLM:    analyst.NewAnthropicClient(anthropic.Model(*explainModelFlag)),
	})
	if err != nil {
		return fmt.Errorf("failed to create explainer: %w", err)
	}

	persister, err := feed.NewFilePersister(*dataDirFlag)
	if err != nil {
		return fmt.Errorf("failed to create persister: %w", err)
	}
	posts, err := persister.Load()
	if err != nil {
		// Unreadable state is orphaned, not fatal; the session starts fresh.
		log.Warn("failed to load persisted posts, starting empty", "error", err)
	}
	store, err := feed.NewStore(feed.StoreConfig{Logger: log, Persister: persister, Initial: posts})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	log.Info("conversation store loaded", "posts", len(posts), "dataDir", *dataDirFlag)

	orch, err := feed.NewOrchestrator(feed.OrchestratorConfig{
		Logger:    log,
		Store:     store,
		Intents:   intents,
		Explainer: explainer,
		Queries:   executor,
		Meta:      metaCache,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	handler, err := handlers.New(handlers.Config{
		Logger:       log,
		Meta:         metaCache,
		Intents:      intents,
		Explainer:    explainer,
		Orchestrator: orch,
		Store:        store,
		ShareBaseURL: *shareBaseURLFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{*allowedOriginFlag},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok\n")); err != nil {
			log.Error("failed to write healthz response", "error", err)
		}
	})
	handler.Register(r)

	server := &http.Server{
		Addr:              *listenAddrFlag,
		Handler:           r,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	serverErrCh := make(chan error, 1)
	go func() {
		log.Info("server: http listening", "address", *listenAddrFlag)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("server: shutting down", "reason", ctx.Err())
	case err := <-serverErrCh:
		log.Error("server: server error causing shutdown", "error", err)
		return err
	case err := <-metricsServerErrCh:
		log.Error("server: metrics server error causing shutdown", "error", err)
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *shutdownTimeoutFlag)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown error", "error", err)
	}
	orch.Wait()
	return nil
}
