package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/glpisum/config"
	"github.com/mohammad-safakhou/glpisum/internal/glpi"
	"github.com/mohammad-safakhou/glpisum/internal/telemetry"
	"github.com/mohammad-safakhou/glpisum/provider"
	"go.uber.org/zap"
)

// ErrNoContent is returned when the tickets yield no text to retrieve from.
var ErrNoContent = errors.New("no ticket content to summarize")

const stuffPrompt = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s

Question: %s
Helpful Answer:`

// Pipeline answers a query over a set of tickets with retrieval-augmented
// generation. Nothing is cached between calls.
type Pipeline struct {
	embedder  provider.Embedder
	completer provider.Completer
	topK      int
	logger    *zap.Logger
	metrics   *telemetry.Metrics
}

func NewPipeline(embedder provider.Embedder, completer provider.Completer, cfg config.RetrievalConfig, logger *zap.Logger, metrics *telemetry.Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.Normalize()
	return &Pipeline{
		embedder:  embedder,
		completer: completer,
		topK:      cfg.TopK,
		logger:    logger.Named("rag"),
		metrics:   metrics,
	}
}

// Summarize chunks the tickets, indexes them, retrieves the chunks most
// relevant to query and asks the model to answer from them.
func (p *Pipeline) Summarize(ctx context.Context, tickets []glpi.Ticket, query string) (string, error) {
	chunks := ChunkTickets(tickets)
	if len(chunks) == 0 {
		return "", ErrNoContent
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	// chunks and query go in one request; the query vector is last
	vecs, err := p.embed(ctx, append(texts, query))
	if err != nil {
		return "", err
	}

	index, err := NewIndex()
	if err != nil {
		return "", err
	}
	defer index.Close()
	for i, c := range chunks {
		if err := index.Add(c, vecs[i]); err != nil {
			return "", err
		}
	}

	hits, err := index.Search(query, vecs[len(chunks)], p.topK)
	if err != nil {
		return "", err
	}
	p.logger.Debug("retrieved context",
		zap.Int("chunks", len(chunks)),
		zap.Int("hits", len(hits)),
	)

	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Text
	}
	return p.generate(ctx, fmt.Sprintf(stuffPrompt, strings.Join(parts, "\n\n"), query))
}

// Complete sends prompt to the model, prefixed by background when non-empty.
func (p *Pipeline) Complete(ctx context.Context, prompt, background string) (string, error) {
	if background != "" {
		prompt = background + "\n\n" + prompt
	}
	return p.generate(ctx, prompt)
}

func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := p.embedder.Embed(ctx, texts)
	p.metrics.LLMCall("embed", err)
	p.metrics.ObserveStage("embed", start)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed: expected %d vectors, got %d", len(texts), len(vecs))
	}
	return vecs, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := p.completer.Complete(ctx, prompt)
	p.metrics.LLMCall("generate", err)
	p.metrics.ObserveStage("generate", start)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return out, nil
}
