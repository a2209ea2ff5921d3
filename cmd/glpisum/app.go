package main

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/glpisum/config"
	"github.com/mohammad-safakhou/glpisum/internal/glpi"
	"github.com/mohammad-safakhou/glpisum/internal/rag"
	"github.com/mohammad-safakhou/glpisum/internal/report"
	"github.com/mohammad-safakhou/glpisum/internal/storage"
	"github.com/mohammad-safakhou/glpisum/internal/telemetry"
	"github.com/mohammad-safakhou/glpisum/internal/worker"
	"github.com/mohammad-safakhou/glpisum/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// app holds the dependencies shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := telemetry.NewLogger(cfg.General)
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := telemetry.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return &app{cfg: cfg, logger: logger, registry: registry, metrics: metrics}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) pipeline() (*rag.Pipeline, error) {
	llm, err := provider.New(a.cfg.LLM)
	if err != nil {
		return nil, err
	}
	return rag.NewPipeline(llm, llm, a.cfg.Retrieval, a.logger, a.metrics), nil
}

func (a *app) glpiClient() (*glpi.Client, error) {
	if err := a.cfg.GLPI.Validate(); err != nil {
		return nil, err
	}
	return glpi.NewClient(a.cfg.GLPI, a.logger, a.metrics), nil
}

func (a *app) processor(ctx context.Context) (*worker.Processor, *rag.Pipeline, error) {
	if err := a.cfg.GLPI.Validate(); err != nil {
		return nil, nil, err
	}
	pipeline, err := a.pipeline()
	if err != nil {
		return nil, nil, err
	}
	uploader, err := storage.NewUploader(ctx, a.cfg.Storage.S3, a.logger, a.metrics)
	if err != nil {
		return nil, nil, err
	}
	proc := worker.NewProcessor(worker.Deps{
		Tickets: func() worker.TicketSource {
			return glpi.NewClient(a.cfg.GLPI, a.logger, a.metrics)
		},
		Summarizer: pipeline,
		Renderer:   report.NewRenderer(a.logger),
		Publisher:  uploader,
	}, a.cfg.Report.OutputDir, a.cfg.Retrieval.Query, a.logger, a.metrics)
	return proc, pipeline, nil
}
