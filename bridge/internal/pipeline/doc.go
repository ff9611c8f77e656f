// Package pipeline wires the query executor to the formatter:
// Scrape(ctx) = format.FormatBatches(executor.Run(ctx), prefix), with
// scrape-level telemetry recorded on the way out.
package pipeline
