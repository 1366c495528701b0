// Package rocker shares one embedded LSM key-value engine between many
// goroutines.
//
// A DB is opened from a filesystem path and an option mapping. Data lives in
// named keyspaces; the "default" keyspace always exists and backs the
// whole-database operations (Get, Put, Delete, Iterate). Keyspace names are
// resolved on every call, so a dropped keyspace is reported as
// ErrUnknownKeyspace by every later operation and by cursors already scoped
// to it.
//
// Point operations hold the DB lock for a single engine call. Apply writes a
// list of operations atomically. A Cursor is advanced by later, independent
// Next calls under its own lock and keeps the engine open until it is closed,
// even if the DB handle is closed first.
package rocker
