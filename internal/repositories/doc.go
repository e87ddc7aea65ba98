// Package repositories implements SQLite persistence for domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [DownloadRepository] : download history (metadata only, never audio bytes)
//   - [HistoryRecorder] : adapter that lets HTTP handlers and the CLI record completed downloads
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
