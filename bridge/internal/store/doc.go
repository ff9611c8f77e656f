// Package store is the bridge's ClickHouse client.
//
// Open(config.ClickHouseConfig) builds a database/sql pool through
// clickhouse-go over the HTTP interface with LZ4 compression and optional
// TLS (tls.go). CheckCert (cert.go) inspects the server certificate when TLS
// is on. Query(ctx, q) decodes rows with sqlx into types.MetricRow;
// any driver, network or decode error is returned wrapped and the partial
// result is discarded.
package store
