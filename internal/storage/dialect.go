package storage

import (
	"strconv"
	"strings"
)

// Dialect is the SQL flavour of the connected database.
type Dialect string

// Supported dialects, named after the DB_DRIVER values.
const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// rebind rewrites ? placeholders to $1, $2, ... for postgres
func (d Dialect) rebind(query string) string {
	if d != Postgres {
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

// lockClause locks the selected product row until the transaction ends.
// SQLite serializes writers through its single connection instead.
func (d Dialect) lockClause() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// textMatch returns the full-text condition on title_search_index
func (d Dialect) textMatch() string {
	if d == Postgres {
		return "title_search_index @@ plainto_tsquery('english', ?)"
	}
	return "title_search_index LIKE '%' || lower(?) || '%'"
}
