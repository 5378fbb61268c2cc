// Package sqlxrepos implements the repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/uzielB/backend-sistemagem-sub000/core"
)

// conditions accumulates WHERE conditions written with `?` placeholders.
// Queries using them must go through Rebind.
type conditions struct {
	conds []string
	args  []interface{}
}

func (c *conditions) add(cond string, args ...interface{}) {
	c.conds = append(c.conds, cond)
	c.args = append(c.args, args...)
}

func (c *conditions) sql() string {
	if len(c.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.conds, " AND ")
}

// orderBy renders ordering, falling back to fallback. Orderings come from core.CleanOrdering.
func orderBy(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + fallback
	}
	list := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		list = append(list, ord.String())
	}
	list = append(list, fallback)
	return " ORDER BY " + strings.Join(list, ", ")
}

// namedGet runs a named query returning a single row into dest.
func namedGet(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, arg interface{}) error {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return err
	}
	return exec.GetContext(ctx, dest, exec.Rebind(q), args...)
}

// dateOnly drops the location pq attaches to DATE columns, keeping the calendar day in UTC.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nullDate(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(*t)
}

func datePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	d := dateOnly(t.Time)
	return &d
}

// nullID maps non-positive ids to NULL foreign keys.
func nullID(id int) null.Int {
	return null.NewInt(id, id > 0)
}
