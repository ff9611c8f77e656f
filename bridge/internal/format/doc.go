// Package format renders query rows as the bridge's line-oriented exposition
// body. Output is a pure function of (prefix, rows): no sorting, no
// deduplication, no escaping, and no error path.
package format
