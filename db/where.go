// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"strconv"
	"strings"
)

// Where accumulates AND-ed conditions with sequential $N placeholders.
// Each condition marks its single argument with "?".
type Where struct {
	clauses []string
	args    []any
}

// Add appends cond, binding arg to its "?" placeholder.
func (w *Where) Add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.Replace(cond, "?", "$"+strconv.Itoa(len(w.args)), 1))
}

// AddIf appends cond only when arg is a non-empty string.
func (w *Where) AddIf(cond string, arg string) {
	if arg != "" {
		w.Add(cond, arg)
	}
}

// Next returns the placeholder for an argument appended after the conditions.
func (w *Where) Next(arg any) string {
	w.args = append(w.args, arg)
	return "$" + strconv.Itoa(len(w.args))
}

// String renders the WHERE clause, or "" when there are no conditions.
func (w *Where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Args returns the bound arguments in placeholder order.
func (w *Where) Args() []any {
	return w.args
}
