// Package migrations embeds the SQL migration files for the review database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
