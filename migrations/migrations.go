// Package migrations embeds the SQL migrations for the reviews table.
//
// Only the legacy column layout is created here, and an early table without
// ratings or delete tokens is upgraded to it. The newer layout is read when
// an existing deployment already has it.
package migrations

import "embed"

// FS holds the embedded migration files
//
//go:embed *.sql
var FS embed.FS

// Path is the directory inside FS that holds the migrations
const Path = "."
