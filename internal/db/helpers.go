package db

import (
	"database/sql"
	"strings"
)

type QueryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

// HasTable checks information_schema for the current database/schema of the given dialect.
func HasTable(q QueryRower, dialect, table string) bool {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		LIMIT 1
	`
	if isPostgres(dialect) {
		query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		  AND table_name = $1
		LIMIT 1
	`
	}
	var name sql.NullString
	if err := q.QueryRow(query, table).Scan(&name); err != nil {
		// bad conn / no rows -> false, caller decides
		return false
	}
	return name.Valid && name.String != ""
}

func isPostgres(dialect string) bool {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql", "pq":
		return true
	}
	return false
}
