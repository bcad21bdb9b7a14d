// Package migrations embeds the SQL schema for tenants, sender feedback and statistics, and audit trails.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
