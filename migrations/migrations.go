// Package migrations embeds the SQL schema migrations for the account
// service database.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
