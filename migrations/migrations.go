// Package migrations embeds the SQL schema migrations for the cart service.
package migrations

import "embed"

// FS holds the migration files, applied in lexicographic order at startup.
//
//go:embed *.up.sql
var FS embed.FS
