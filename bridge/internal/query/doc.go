// Package query executes the configured bridge queries.
//
// An Executor owns the ordered query list and a Store (the ClickHouse client
// in production, a fake in tests). Run(ctx) is all-or-nothing: a single
// failing query, including a cancelled context, discards the batch and is
// reported as *Error{Index, Query, Err}. There are no retries and no logging
// here; callers decide what a failed scrape means.
package query
