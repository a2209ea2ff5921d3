package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/mohammad-safakhou/glpisum/internal/glpi"
	"github.com/mohammad-safakhou/glpisum/internal/report"
	"github.com/mohammad-safakhou/glpisum/internal/telemetry"
	"go.uber.org/zap"
)

const (
	stageFetch     = "fetch"
	stageSummarize = "summarize"
	stageRender    = "render"
	stageUpload    = "upload"

	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

// ErrTicketNotFound is returned when the ticket could not be retrieved.
var ErrTicketNotFound = errors.New("could not retrieve ticket")

// TicketSource fetches tickets over one API session.
type TicketSource interface {
	GetTicket(ctx context.Context, id int) *glpi.Ticket
	KillSession(ctx context.Context) bool
}

// SourceFactory opens a fresh TicketSource; every task gets its own.
type SourceFactory func() TicketSource

// Summarizer answers a query over a set of tickets.
type Summarizer interface {
	Summarize(ctx context.Context, tickets []glpi.Ticket, query string) (string, error)
}

// Renderer writes a report to a local file.
type Renderer interface {
	RenderFile(path string, r report.Report) error
}

// Publisher uploads a local file and removes it afterwards.
type Publisher interface {
	Publish(ctx context.Context, path string) error
}

// Deps are the collaborators of a Processor.
type Deps struct {
	Tickets    SourceFactory
	Summarizer Summarizer
	Renderer   Renderer
	Publisher  Publisher
}

// Processor turns a ticket id into an uploaded summary report.
type Processor struct {
	deps      Deps
	outputDir string
	query     string
	logger    *zap.Logger
	metrics   *telemetry.Metrics

	wg sync.WaitGroup
}

// NewProcessor constructs a Processor writing reports into outputDir before upload.
func NewProcessor(deps Deps, outputDir, query string, logger *zap.Logger, metrics *telemetry.Metrics) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if outputDir == "" {
		outputDir = "."
	}
	return &Processor{
		deps:      deps,
		outputDir: outputDir,
		query:     query,
		logger:    logger.Named("worker"),
		metrics:   metrics,
	}
}

// ReportFilename is the local file name, and object key, of a ticket's report.
func ReportFilename(ticketID int) string {
	return fmt.Sprintf("glpi_ticket_%d.pdf", ticketID)
}

// Process runs the whole pipeline for one ticket synchronously.
func (p *Processor) Process(ctx context.Context, ticketID int) error {
	return p.process(ctx, ticketID, p.logger.With(zap.Int("ticket_id", ticketID)))
}

func (p *Processor) process(ctx context.Context, ticketID int, logger *zap.Logger) error {
	src := p.deps.Tickets()
	defer src.KillSession(ctx)

	start := time.Now()
	ticket := src.GetTicket(ctx, ticketID)
	p.metrics.ObserveStage(stageFetch, start)
	if ticket == nil {
		logger.Error("could not retrieve ticket")
		return ErrTicketNotFound
	}

	start = time.Now()
	summary, err := p.deps.Summarizer.Summarize(ctx, []glpi.Ticket{*ticket}, p.query)
	p.metrics.ObserveStage(stageSummarize, start)
	if err != nil {
		logger.Error("summarization failed", zap.Error(err))
		return fmt.Errorf("summarize ticket %d: %w", ticketID, err)
	}

	path := filepath.Join(p.outputDir, ReportFilename(ticketID))
	rep := report.Report{
		Title:   fmt.Sprintf("GLPI Ticket Summary - ID: %d", ticketID),
		Query:   p.query,
		Result:  summary,
		Sources: []report.Source{{ID: strconv.Itoa(ticketID), Type: glpi.SourceType}},
	}
	start = time.Now()
	err = p.deps.Renderer.RenderFile(path, rep)
	p.metrics.ObserveStage(stageRender, start)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("could not remove partial report", zap.String("path", path), zap.Error(rmErr))
		}
		logger.Error("report rendering failed", zap.Error(err))
		return fmt.Errorf("render ticket %d: %w", ticketID, err)
	}

	start = time.Now()
	err = p.deps.Publisher.Publish(ctx, path)
	p.metrics.ObserveStage(stageUpload, start)
	if err != nil {
		logger.Error("report upload failed", zap.Error(err))
		return fmt.Errorf("upload ticket %d: %w", ticketID, err)
	}

	logger.Info("ticket processed", zap.String("report", ReportFilename(ticketID)))
	return nil
}
