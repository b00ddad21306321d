// Package migrations embeds the schema applied by `lead-intake migrate`.
package migrations

import (
	"embed"
	"strings"
)

//go:embed mysql/*.sql clickhouse/*.sql
var FS embed.FS

// Statements splits a migration file on statement-ending semicolons.
// Comment-only chunks are dropped.
func Statements(sql string) []string {
	var out []string
	for _, chunk := range strings.Split(sql, ";\n") {
		var lines []string
		for _, l := range strings.Split(chunk, "\n") {
			if t := strings.TrimSpace(l); t != "" && !strings.HasPrefix(t, "--") {
				lines = append(lines, l)
			}
		}
		stmt := strings.TrimSuffix(strings.TrimSpace(strings.Join(lines, "\n")), ";")
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
