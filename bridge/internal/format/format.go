package format

import (
	"strconv"
	"strings"

	"github.com/obsidianstack/clickhouse-bridge/pkg/types"
)

// infix sits between the prefix and the metric name on every line.
const infix = ".system.metrics."

// Line renders one row as "<prefix>.system.metrics.<metric>: <value>\n".
// The metric name is lowercased; the value is plain base-10.
func Line(prefix string, row types.MetricRow) string {
	var b strings.Builder
	writeLine(&b, prefix, row)
	return b.String()
}

// Format renders rows in the order given. No rows yields "".
func Format(rows []types.MetricRow, prefix string) string {
	var b strings.Builder
	for _, r := range rows {
		writeLine(&b, prefix, r)
	}
	return b.String()
}

// FormatBatches renders per-query batches back to back, batch order first,
// then row order within each batch.
func FormatBatches(batches [][]types.MetricRow, prefix string) string {
	var b strings.Builder
	for _, rows := range batches {
		for _, r := range rows {
			writeLine(&b, prefix, r)
		}
	}
	return b.String()
}

// Lines counts the rows across batches, which is also the number of lines
// FormatBatches will emit.
func Lines(batches [][]types.MetricRow) int {
	n := 0
	for _, rows := range batches {
		n += len(rows)
	}
	return n
}

func writeLine(b *strings.Builder, prefix string, r types.MetricRow) {
	b.WriteString(prefix)
	b.WriteString(infix)
	b.WriteString(strings.ToLower(r.Metric))
	b.WriteString(": ")
	b.WriteString(strconv.FormatInt(r.Value, 10))
	b.WriteByte('\n')
}
