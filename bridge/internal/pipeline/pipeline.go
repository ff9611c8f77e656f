package pipeline

import (
	"context"
	"time"

	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/format"
	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/query"
	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/telemetry"
)

// Pipeline turns one scrape into one exposition body.
type Pipeline struct {
	exec    *query.Executor
	prefix  string
	metrics *telemetry.Metrics
}

// New returns a Pipeline. metrics may be nil.
func New(exec *query.Executor, prefix string, metrics *telemetry.Metrics) *Pipeline {
	return &Pipeline{exec: exec, prefix: prefix, metrics: metrics}
}

// Scrape runs every query and formats the result. On failure the body is
// empty and the executor's error is returned as is.
func (p *Pipeline) Scrape(ctx context.Context) (string, error) {
	start := time.Now()
	batches, err := p.exec.Run(ctx)
	if err != nil {
		p.observe(start, 0, err)
		return "", err
	}
	body := format.FormatBatches(batches, p.prefix)
	p.observe(start, format.Lines(batches), nil)
	return body, nil
}

func (p *Pipeline) observe(start time.Time, lines int, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.ObserveScrape(time.Since(start), lines, err)
}
