package database

import (
	"fmt"
	"strings"
)

// Dialects understood by Rebind and the query builder
const (
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

// ConvertPlaceholders converts ? placeholders to $1, $2, ...
func ConvertPlaceholders(query string) string {
	var (
		b     strings.Builder
		count int
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		if r == '?' {
			count++
			fmt.Fprintf(&b, "$%d", count)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// rebind rewrites placeholders for the given dialect
func rebind(dialect, query string) string {
	if dialect == DialectPostgres {
		return ConvertPlaceholders(query)
	}
	return query
}

// QueryBuilder provides SQL query building functionality
type QueryBuilder struct {
	sql      strings.Builder
	args     []any
	argIndex int
	dialect  string
	hasWhere bool
}

// NewQueryBuilder creates new query builder
func NewQueryBuilder(dialect string) *QueryBuilder {
	return &QueryBuilder{
		dialect: dialect,
		args:    make([]any, 0),
	}
}

// SQL returns the built query string
func (qb *QueryBuilder) SQL() string {
	return qb.sql.String()
}

// Args returns query arguments
func (qb *QueryBuilder) Args() []any {
	return qb.args
}

// Select adds SELECT clause
func (qb *QueryBuilder) Select(cols ...string) *QueryBuilder {
	qb.sql.WriteString("SELECT ")
	qb.sql.WriteString(strings.Join(cols, ", "))
	return qb
}

// From adds FROM clause
func (qb *QueryBuilder) From(table string) *QueryBuilder {
	qb.sql.WriteString(" FROM ")
	qb.sql.WriteString(table)
	return qb
}

// Where adds WHERE condition
func (qb *QueryBuilder) Where(cond string, args ...any) *QueryBuilder {
	if !qb.hasWhere {
		qb.sql.WriteString(" WHERE ")
		qb.hasWhere = true
	} else {
		qb.sql.WriteString(" AND ")
	}

	// Convert placeholders based on dialect
	if qb.dialect == DialectPostgres {
		for range args {
			qb.argIndex++
			cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", qb.argIndex), 1)
		}
	}

	qb.sql.WriteString(cond)
	qb.args = append(qb.args, args...)
	return qb
}

// OrderBy adds ORDER BY clause
func (qb *QueryBuilder) OrderBy(cols ...string) *QueryBuilder {
	qb.sql.WriteString(" ORDER BY ")
	qb.sql.WriteString(strings.Join(cols, ", "))
	return qb
}

// Limit adds LIMIT clause
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	if limit > 0 {
		qb.sql.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	}
	return qb
}

// Offset adds OFFSET clause
func (qb *QueryBuilder) Offset(offset int) *QueryBuilder {
	if offset > 0 {
		qb.sql.WriteString(fmt.Sprintf(" OFFSET %d", offset))
	}
	return qb
}
