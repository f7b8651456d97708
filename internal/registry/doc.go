// Package registry persists RDM responders discovered on the bus.
//
// The registry answers "what is on this wire" across restarts: every
// discovery run upserts the responders it finds, and a clean full sweep
// marks the responders it did not find as offline. Devices are never
// deleted; a fixture unplugged for a season keeps its labels and
// first-seen date for when it returns.
//
// # Discovery runs
//
// Each run gets a uuid and a row in discovery_runs. The lifecycle is
// BeginRun → RecordSighting per found UID → CompleteRun. Partial runs
// (probe budget exhausted) record their error and skip the offline
// reconciliation, since an aborted sweep proves nothing about the
// ranges it never probed.
//
// # Storage
//
// One SQLite database shared with the rest of the bridge via the
// database package. The schema is applied by Init and tracked with the
// SQLite user_version pragma.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use; the underlying
// connection pool is pinned to a single connection.
package registry
