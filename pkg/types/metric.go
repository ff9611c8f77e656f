package types

// MetricRow is one result row of a bridge query. Queries must return exactly
// the columns "metric" and "value"; the db tags drive column mapping in the
// store client.
type MetricRow struct {
	Metric string `db:"metric"`
	Value  int64  `db:"value"`
}
