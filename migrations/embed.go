// Package migrations embeds the PostgreSQL schema applied at startup.
package migrations

import "embed"

// FS holds every *.up.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
