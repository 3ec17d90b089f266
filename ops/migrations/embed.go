// Package migrations ships the schema and demo seed files inside the binary.
package migrations

import "embed"

//go:embed sql/*.sql
var SQL embed.FS

//go:embed seeds/*.sql
var Seeds embed.FS
