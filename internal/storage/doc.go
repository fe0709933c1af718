// Package storage persists the action audit log.
//
// Two backends are available:
//   - file: append-only JSON Lines, no dependencies
//   - sqlite: SQLite database (build with -tags sqlite)
package storage
