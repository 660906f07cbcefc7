// Package migrations embeds the goose migrations for the identity schema.
package migrations

import "embed"

// FS holds the versioned SQL files, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
