// Package telemetry instruments the bridge itself: scrape counts and
// latency, per-query latency and errors, and the size of the last body.
// The exposition body served on /metrics is not produced here.
package telemetry
