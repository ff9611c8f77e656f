package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/query"
	"github.com/obsidianstack/clickhouse-bridge/pkg/types"
)

type instrumentedStore struct {
	next    query.Store
	metrics *Metrics
	labels  map[string]string
}

// InstrumentStore wraps next so every query is timed and failures counted
// under the query's position in queries. Results and errors pass through
// untouched. A query text not in queries is labelled "other".
func InstrumentStore(next query.Store, queries []string, m *Metrics) query.Store {
	labels := make(map[string]string, len(queries))
	for i, q := range queries {
		if _, dup := labels[q]; !dup {
			labels[q] = strconv.Itoa(i)
		}
	}
	return &instrumentedStore{next: next, metrics: m, labels: labels}
}

func (s *instrumentedStore) Query(ctx context.Context, q string) ([]types.MetricRow, error) {
	label, ok := s.labels[q]
	if !ok {
		label = "other"
	}
	start := time.Now()
	rows, err := s.next.Query(ctx, q)
	s.metrics.observeQuery(label, time.Since(start), err)
	return rows, err
}
