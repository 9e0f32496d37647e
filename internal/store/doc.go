// Package store provides the persistent settings store used by the
// security engine and the command channel.
//
// The store is a flat key/value contract: each key holds one opaque blob.
// Callers own the encoding of their values. Two implementations exist:
//
//   - SQLiteStore persists to the settings_store table
//   - MemoryStore keeps values in process memory, for tests and dry runs
//
// Well-known keys are declared as constants so that writers and readers
// across packages agree on them.
package store
