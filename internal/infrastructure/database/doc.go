// Package database provides SQLite persistence for the DMX bridge.
//
// The bridge keeps one small database: the registry of RDM responders
// seen on the wire. This package owns the connection lifecycle and the
// pragmas that make SQLite behave well on an embedded controller; the
// schema itself belongs to the packages that store data (see registry).
//
// # Configuration
//
//	database:
//	  path: "./data/dmxbridge.db"
//	  wal_mode: true
//	  busy_timeout: 5000
//
// WAL mode allows the MQTT bridge to read the device list while a
// discovery run is writing. The connection pool is pinned to a single
// connection because SQLite permits one writer.
//
// # Schema versioning
//
// Table owners track their schema with the SQLite user_version pragma
// via SchemaVersion/SetSchemaVersion rather than a migrations table.
// One integer is enough for a single-table database.
//
// # Thread Safety
//
// *DB is safe for concurrent use; database/sql serialises access to
// the single underlying connection.
package database
