// Package migrations embeds the SQL schema applied by `padron-server migrate`.
package migrations

import "embed"

// FS holds the versioned migration files (NNN_name.sql).
//
//go:embed *.sql
var FS embed.FS
