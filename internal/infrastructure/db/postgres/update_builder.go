package postgres

import (
	"fmt"
	"strings"
)

// assignments accumulates the SET clause of a partial UPDATE. Placeholders
// are numbered after the arguments already reserved by the caller.
type assignments struct {
	cols []string
	args []any
}

func newAssignments(reserved ...any) *assignments {
	return &assignments{args: append([]any(nil), reserved...)}
}

// set adds "column = $n" bound to v.
func (a *assignments) set(column string, v any) {
	a.args = append(a.args, v)
	a.cols = append(a.cols, fmt.Sprintf("%s = $%d", column, len(a.args)))
}

// setIf adds the assignment only when ok is true.
func (a *assignments) setIf(ok bool, column string, v any) {
	if ok {
		a.set(column, v)
	}
}

// clause renders the assignments, always touching updated_at.
func (a *assignments) clause() string {
	return strings.Join(append(append([]string(nil), a.cols...), "updated_at = now()"), ", ")
}
