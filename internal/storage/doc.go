// Package storage persists the scheduler's collaborator state:
//   - schedule plans per study
//   - participant event timestamps (the anchor map)
//   - generated scheduled activities, upserted idempotently by guid
//
// Two backends exist behind one Store interface: a dependency-free file
// backend (JSON snapshots + an append-only event journal) and a SQLite
// backend compiled in with -tags sqlite.
package storage
