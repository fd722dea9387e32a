// Package migrations embeds the server postgres schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
