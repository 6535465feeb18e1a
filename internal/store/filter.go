package store

import (
	"fmt"
	"strings"

	"github.com/datallboy/godepot/internal/domain"
)

// Placeholder renders the n-th (1-based) bind parameter for a SQL dialect.
type Placeholder func(n int) string

// QuestionMark is the SQLite placeholder style.
func QuestionMark(int) string { return "?" }

// DollarN is the PostgreSQL placeholder style.
func DollarN(n int) string { return fmt.Sprintf("$%d", n) }

// FilterClause builds the depot visibility condition for the given settings.
// A depot matches a filter list when one of its values occurs in the
// depot's column, or when the column is empty (no restriction declared).
// An empty filter list admits everything. like is the case-insensitive
// pattern operator of the dialect; first is the index of the first bind
// parameter the clause may use.
func FilterClause(s domain.Settings, like string, ph Placeholder, first int) (string, []any) {
	var (
		parts []string
		args  []any
		n     = first
	)

	add := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		terms := make([]string, 0, len(values)+1)
		for _, v := range values {
			terms = append(terms, fmt.Sprintf("%s %s %s", column, like, ph(n)))
			args = append(args, "%"+v+"%")
			n++
		}
		terms = append(terms, column+" = ''")
		parts = append(parts, "("+strings.Join(terms, " OR ")+")")
	}

	add("oses", s.OSFilters)
	add("langs", s.LanguageFilters)

	if len(parts) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(parts, " AND "), args
}
