package storage

import (
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/tartampluch/rappel-anniv/internal/config"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect string

const (
	DialectSQLite   Dialect = config.DriverSQLite
	DialectPostgres Dialect = config.DriverPostgres
)

// Rebind rewrites "?" placeholders to "$n" for PostgreSQL. Queries never
// contain a literal question mark.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) primaryKey() string {
	if d == DialectPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// inClause returns a "column IN (...)" condition and its arguments. Postgres
// binds the whole list as one array parameter.
func (d Dialect) inClause(column string, ids []int64) (string, []any) {
	if d == DialectPostgres {
		return column + " = ANY(?)", []any{pq.Array(ids)}
	}
	if len(ids) == 0 {
		return "1 = 0", nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return column + " IN (?" + strings.Repeat(", ?", len(ids)-1) + ")", args
}
