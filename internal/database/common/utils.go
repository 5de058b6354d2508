package common

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	commentRegex = regexp.MustCompile(`(?m)^\s*--.*$`)
	stringRegex  = regexp.MustCompile(`'(?:[^']|'')*'|"(?:[^"]|"")*"|` + "`(?:[^`]|``)*`")
)

// QueryResult holds every row of a query keyed by column name.
type QueryResult struct {
	Columns []string
	Rows    []map[string]interface{}
}

// Len returns the number of rows.
func (r *QueryResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Int64 reads an integer column of row i.
func (r *QueryResult) Int64(i int, column string) (int64, error) {
	return ToInt64(r.Rows[i][column])
}

// String reads a text column of row i. NULL reads as "".
func (r *QueryResult) String(i int, column string) string {
	return ToString(r.Rows[i][column])
}

// ToInt64 converts a driver value to int64.
func ToInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(n)), 10, 64)
	case nil:
		return 0, fmt.Errorf("NULL is not an integer")
	default:
		return 0, fmt.Errorf("unexpected integer value %T", v)
	}
}

// ToString converts a driver value to its text form.
func ToString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

// ParseSQLStatements splits a script on semicolons that are outside string literals.
func ParseSQLStatements(sql string) []string {
	sql = commentRegex.ReplaceAllString(sql, "")

	stringPositions := make(map[int]bool)
	for _, match := range stringRegex.FindAllStringIndex(sql, -1) {
		for i := match[0]; i < match[1]; i++ {
			stringPositions[i] = true
		}
	}

	statements := make([]string, 0, strings.Count(sql, ";")+1)

	var current strings.Builder
	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" && !strings.HasPrefix(stmt, "/*") {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for i, char := range sql {
		if char == ';' && !stringPositions[i] {
			flush()
			continue
		}
		current.WriteRune(char)
	}
	flush()

	return statements
}
