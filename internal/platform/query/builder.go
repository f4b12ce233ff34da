// Package query builds parameterized PostgreSQL SELECT statements for the
// filtered, paginated listings used by the repositories.
package query

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterType defines how a filter value is matched against its column.
type FilterType int

const (
	FilterExact  FilterType = iota // Exact equality
	FilterPrefix                   // Case-insensitive prefix match
	FilterBool                     // Boolean column, accepts true/false/1/0/si/no
	FilterInt                      // Integer column
)

// FilterConfig maps a request filter name to its database column.
type FilterConfig struct {
	Type   FilterType
	Column string
}

// Builder accumulates WHERE clauses and their positional arguments.
type Builder struct {
	from    string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

// New creates a Builder selecting cols from the given FROM expression
// (a table name or a join).
func New(from, cols string) *Builder {
	return &Builder{
		from: from,
		cols: cols,
		idx:  1,
	}
}

// Idx returns the next available parameter index.
func (q *Builder) Idx() int { return q.idx }

// Add appends a raw WHERE clause fragment (without leading "AND"). The
// fragment must number its placeholders starting at Idx().
func (q *Builder) Add(clause string, args ...interface{}) {
	q.where += " AND " + clause
	q.args = append(q.args, args...)
	q.idx += len(args)
}

// AddExact adds an equality clause.
func (q *Builder) AddExact(column string, value interface{}) {
	q.Add(fmt.Sprintf("%s = $%d", column, q.idx), value)
}

// AddPrefix adds a case-insensitive prefix clause. LIKE wildcards in value
// are escaped.
func (q *Builder) AddPrefix(column, value string) {
	q.Add(fmt.Sprintf("%s ILIKE $%d", column, q.idx), escapeLike(value)+"%")
}

// Apply applies a single filter using its config. Values that do not parse
// for the column type are ignored.
func (q *Builder) Apply(config FilterConfig, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	switch config.Type {
	case FilterExact:
		q.AddExact(config.Column, value)
	case FilterPrefix:
		q.AddPrefix(config.Column, value)
	case FilterBool:
		if b, ok := ParseBool(value); ok {
			q.AddExact(config.Column, b)
		}
	case FilterInt:
		if n, err := strconv.Atoi(value); err == nil {
			q.AddExact(config.Column, n)
		}
	}
}

// ApplyAll applies every filter in params that has a config. Names are
// processed in the order of the keys slice so placeholder numbering is
// deterministic.
func (q *Builder) ApplyAll(params map[string]string, keys []string, configs map[string]FilterConfig) {
	for _, name := range keys {
		config, ok := configs[name]
		if !ok {
			continue
		}
		if value, ok := params[name]; ok {
			q.Apply(config, value)
		}
	}
}

// OrderBy sets the ORDER BY clause (without the "ORDER BY" keyword).
func (q *Builder) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

// CountSQL returns the count query SQL.
func (q *Builder) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.from, q.where)
}

// CountArgs returns the arguments for the count query.
func (q *Builder) CountArgs() []interface{} {
	return q.args
}

// DataSQL returns the data query SQL with ORDER BY and LIMIT/OFFSET.
func (q *Builder) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.from, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.idx, q.idx+1)
	return sql
}

// DataArgs returns the arguments for the data query (filter args + limit + offset).
func (q *Builder) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(q.args)+2)
	copy(result, q.args)
	result[len(q.args)] = limit
	result[len(q.args)+1] = offset
	return result
}

// ParseBool accepts the boolean spellings used by the registry forms.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on", "si", "sí", "yes":
		return true, true
	case "false", "0", "off", "no":
		return false, true
	}
	return false, false
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
