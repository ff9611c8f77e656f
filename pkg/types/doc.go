// Package types defines the row shape shared by the store client, the query
// executor and the metric formatter. Keeping it outside bridge/internal lets
// other services decode bridge queries with the same struct.
package types
