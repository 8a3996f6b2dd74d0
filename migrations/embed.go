// Package migrations embeds SQL migration files for use at runtime.
// Migrations are embedded so they work regardless of working directory.
package migrations

import "embed"

// FS is the embedded migrations filesystem.
// Holds the catalog schema (001_catalog.sql onwards), applied in name order.
//
//go:embed *.sql
var FS embed.FS
