package db

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// SanitizeTable quotes a table name, handling schema-qualified names like
// "public.geocode_cache".
func SanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}
