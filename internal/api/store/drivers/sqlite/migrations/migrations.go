// Package migrations embeds the schema migration files so a deployed binary
// carries its own schema history.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
