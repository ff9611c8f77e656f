// Package api implements the HTTP surface of the bridge.
//
// New(scraper, opts) returns an http.Handler that serves:
//
//	GET /metrics           : exposition body, text/plain; 500 if any query fails
//	GET <telemetry path>   : bridge self-metrics (default /internal/metrics)
//	GET /live, GET /ready  : healthcheck probes (goroutine ceiling, ClickHouse ping)
//
// All endpoints return 405 for non-GET methods. /metrics narrows the request
// context by Options.ScrapeTimeout, so a slow ClickHouse fails the scrape
// rather than hanging the collector. No external HTTP framework is used.
package api
