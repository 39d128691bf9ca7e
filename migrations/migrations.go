// Package migrations embeds the SQL schema of the dispatch service.
package migrations

import "embed"

// FS holds the numbered up and down migrations.
//
//go:embed *.sql
var FS embed.FS
