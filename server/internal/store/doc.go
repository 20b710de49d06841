// Package store owns the mapping from subscription UID to expiry policy.
//
// The canonical mapping lives in memory behind a single RWMutex. Every
// mutation (Upsert, Sweep) clones the mapping, applies the change, writes the
// full record set to the configured Snapshotter and only then swaps the clone
// in. A failed write leaves the previous mapping authoritative both in memory
// and on disk.
//
// Durable record format, one record per UID:
//
//	"permanent"                never expires
//	"2006-01-02 15:04:05"      absolute expiry, second precision, in the
//	                           store's clock location (default: local time)
//
// Month and year units use fixed ratios (30 and 365 days). This is not
// calendar arithmetic; existing integrations depend on the exact values.
package store
