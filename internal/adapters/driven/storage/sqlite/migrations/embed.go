// Package migrations holds the versioned ingestion schema for the SQLite store.
package migrations

import "embed"

// FS holds the NNN_name.up.sql and NNN_name.down.sql pairs, applied in
// version order by the store.
//
//go:embed *.sql
var FS embed.FS
