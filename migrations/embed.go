// Package migrations embeds the Postgres schema for tenant records and
// persona fallback auditing.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
