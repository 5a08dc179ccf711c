package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doxa-platform/triage/pkg/analysis"
	"github.com/doxa-platform/triage/pkg/apiserver"
	"github.com/doxa-platform/triage/pkg/auditlog"
	"github.com/doxa-platform/triage/pkg/classification"
	"github.com/doxa-platform/triage/pkg/confidence"
	"github.com/doxa-platform/triage/pkg/config"
	"github.com/doxa-platform/triage/pkg/docstore"
	"github.com/doxa-platform/triage/pkg/inference"
	"github.com/doxa-platform/triage/pkg/observability/logging"
	"github.com/doxa-platform/triage/pkg/pipeline"
	"github.com/doxa-platform/triage/pkg/ragloop"
	"github.com/doxa-platform/triage/pkg/sensitive"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	flag.Parse()

	// Initialize logging (zap) from environment.
	if _, err := logging.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
	}
	defer logging.Sync()

	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logging.Fatalf("Config file not found: %s", *configPath)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("Failed to load config: %v", err)
	}

	// Metrics endpoint.
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		metricsAddr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		logging.Infof("Starting metrics server on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			logging.Errorf("Metrics server error: %v", err)
		}
	}()

	// Shared model client: classification, evaluation, analysis,
	// composition, confidence and generation all go through one
	// long-lived OpenAI-compatible client.
	client := inference.NewClient(inference.OptionsFromConfig(cfg.Inference))

	backendCfg := docstore.ConfigFromPipeline(cfg)
	if err := docstore.ValidateBackendConfig(backendCfg); err != nil {
		logging.Fatalf("Invalid document store config: %v", err)
	}
	store, err := docstore.NewBackend(backendCfg)
	if err != nil {
		logging.Fatalf("Failed to connect to document store: %v", err)
	}

	loop := ragloop.NewLoop(ragloop.NewLoopOptions{
		Store:          store,
		Evaluator:      client,
		Generator:      client,
		Scorer:         confidence.NewScorer(client),
		MaxRetries:     cfg.Loop.MaxRetries,
		BaseResults:    cfg.Loop.BaseResults,
		MaxResults:     cfg.Loop.MaxResults,
		SupportContact: cfg.Escalation.SupportContact,
	})

	var auditStore auditlog.Store
	var auditWriter *auditlog.AsyncWriter
	if cfg.Audit.Enabled {
		auditStore, err = auditlog.NewStore(cfg.Audit)
		if err != nil {
			logging.Fatalf("Failed to initialize audit store: %v", err)
		}
		defer auditStore.Close()

		if cfg.Audit.Async.Enabled {
			auditWriter = auditlog.NewAsyncWriter(auditStore, auditlog.AsyncWriterConfig{
				BufferSize:      cfg.Audit.Async.BufferSize,
				FlushIntervalMs: cfg.Audit.Async.FlushIntervalMs,
			})
			auditWriter.Start()
		}
	} else {
		logging.Infof("Audit log disabled")
	}

	pipe := pipeline.NewPipeline(pipeline.NewPipelineOptions{
		Classifier: classification.NewClassifier(classification.NewClassifierOptions{
			Inferencer: client,
			Detector:   sensitive.NewDetector(),
		}),
		Analyzer:        analysis.NewAnalyzer(client),
		Enricher:        analysis.NewEnricher(client),
		Language:        analysis.NewLanguageDetector(client),
		Composer:        analysis.NewComposer(client),
		Loop:            loop,
		AuditStore:      auditStore,
		AuditWriter:     auditWriter,
		MaxRetries:      cfg.Loop.MaxRetries,
		TargetLatencyMs: cfg.Tracing.TargetLatencyMs,
		IdealLatencyMs:  cfg.Tracing.IdealLatencyMs,
		SupportContact:  cfg.Escalation.SupportContact,
	})

	server := apiserver.NewServer(apiserver.NewServerOptions{
		Pipeline: pipe,
		Audit:    auditStore,
		Port:     cfg.API.Port,
	})

	// Drain pending audit writes on shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Infof("Received %v, shutting down", sig)
		if auditWriter != nil {
			auditWriter.Stop()
		}
		logging.Sync()
		os.Exit(0)
	}()

	logging.Infof("Starting support triage pipeline with config: %s", *configPath)
	if err := server.Start(); err != nil {
		logging.Fatalf("API server error: %v", err)
	}
}
