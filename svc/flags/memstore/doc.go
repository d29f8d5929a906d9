// Package memstore is an in-memory implementation of flags.Store.
//
// It enforces the same rules as the PostgreSQL schema: unique feature state
// triples, one value per state, unique API keys, unique project names per
// organisation and case-insensitive unique feature names per project. Deletes
// cascade the way the schema's foreign keys do.
//
// Each write transaction runs on a copy of the committed data and publishes it
// atomically on success, so a failed transaction leaves nothing behind and
// readers always see a complete version.
//
// Usage:
//
//	svc := flags.NewService(memstore.New())
package memstore
