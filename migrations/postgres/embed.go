// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contains the Postgres migrations for the tasks database.
// Scripts must be idempotent: they run on every startup.
//
//go:embed *.sql
var FS embed.FS
