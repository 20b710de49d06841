// Package snapshot implements the durable record set behind the expiry store.
//
// Every backend stores one record per UID (the string produced by
// store.Policy.Format) and replaces the whole set on each Save:
//
//	file       one JSON object, optionally s2/zstd compressed, written to a
//	           temp file and renamed into place
//	valkey     one hash, rebuilt under a temp key and RENAMEd into place
//	postgres   one table, rewritten inside a transaction with COPY
//	memory     process-local map, for tests and ephemeral runs
//
// Open(ctx, cfg) builds the backend selected by config.StorageConfig.
package snapshot
