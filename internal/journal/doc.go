// Package journal stores a record of every mirror run in SQLite.
//
// A run row holds the origin, output directory, start and finish times and
// the final counters. A page row holds what happened to one URL: where it
// was mapped, where it was written, its HTTP status and its outcome. The
// history command reads both back.
//
// The database uses modernc.org/sqlite (no cgo) in WAL mode with a single
// open connection, so concurrent workers serialize their inserts through
// database/sql.
package journal
