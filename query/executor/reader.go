package executor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satishbabariya/batchsql/internal/debug"
	"github.com/satishbabariya/batchsql/query/result"
	"github.com/satishbabariya/batchsql/query/sqlgen"
)

// unitReader exposes the units of a batch as consecutive result sets. Each
// unit is declared, filled and selected when the reader advances to it.
type unitReader struct {
	ctx   context.Context
	q     Querier
	units []sqlgen.Unit
	id    any

	next  int
	rows  *sql.Rows
	cur   result.Reader
	drops []string
	err   error
}

func (r *unitReader) advance() bool {
	if r.err != nil {
		return false
	}
	if r.rows != nil {
		if err := r.rows.Close(); err != nil {
			r.err = err
			return false
		}
		r.rows, r.cur = nil, nil
	}
	if r.next >= len(r.units) {
		return false
	}
	u := r.units[r.next]
	r.next++

	if _, err := r.q.ExecContext(r.ctx, u.Declare); err != nil {
		r.err = fmt.Errorf("declare %s: %w", u.Variable, err)
		return false
	}
	if u.Drop != "" {
		r.drops = append(r.drops, u.Drop)
	}

	var args []any
	if u.UsesKey {
		args = append(args, r.id)
	}
	if _, err := r.q.ExecContext(r.ctx, u.Insert, args...); err != nil {
		r.err = fmt.Errorf("fill %s: %w", u.Variable, err)
		return false
	}

	rows, err := r.q.QueryContext(r.ctx, u.Select)
	if err != nil {
		r.err = fmt.Errorf("read %s: %w", u.Variable, err)
		return false
	}
	r.rows, r.cur = rows, result.FromRows(rows)
	return true
}

func (r *unitReader) Columns() ([]result.ColumnType, error) {
	if r.cur == nil {
		return nil, fmt.Errorf("no current result set")
	}
	return r.cur.Columns()
}

func (r *unitReader) Next() bool { return r.cur != nil && r.cur.Next() }

func (r *unitReader) Values() ([]any, error) { return r.cur.Values() }

func (r *unitReader) NextResultSet() bool { return r.advance() }

func (r *unitReader) Err() error {
	if r.err != nil {
		return r.err
	}
	if r.cur != nil {
		return r.cur.Err()
	}
	return nil
}

// Close releases the current result set and drops every table created so
// far, also after a failure or cancellation.
func (r *unitReader) Close() {
	if r.rows != nil {
		if err := r.rows.Close(); err != nil {
			debug.Debug("failed to close result set", "error", err)
		}
		r.rows, r.cur = nil, nil
	}
	ctx := context.WithoutCancel(r.ctx)
	for i := len(r.drops) - 1; i >= 0; i-- {
		if _, err := r.q.ExecContext(ctx, r.drops[i]); err != nil {
			debug.Warn("failed to drop intermediate table", "statement", r.drops[i], "error", err)
		}
	}
	r.drops = nil
}
