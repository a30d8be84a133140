package result

import "database/sql"

// ColumnType is the reader's description of one result column.
type ColumnType struct {
	Name         string
	DatabaseType string
}

// Reader is a forward-only reader over one or more result sets. It starts
// positioned on the first result set.
type Reader interface {
	Columns() ([]ColumnType, error)
	Next() bool
	Values() ([]any, error)
	NextResultSet() bool
	Err() error
}

type rowsReader struct {
	rows *sql.Rows
	n    int
}

// FromRows adapts rows to a Reader. The caller closes rows.
func FromRows(rows *sql.Rows) Reader {
	return &rowsReader{rows: rows}
}

func (r *rowsReader) Columns() ([]ColumnType, error) {
	types, err := r.rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	out := make([]ColumnType, len(types))
	for i, t := range types {
		out[i] = ColumnType{Name: t.Name(), DatabaseType: t.DatabaseTypeName()}
	}
	r.n = len(out)
	return out, nil
}

func (r *rowsReader) Next() bool { return r.rows.Next() }

func (r *rowsReader) Values() ([]any, error) {
	values := make([]any, r.n)
	ptrs := make([]any, r.n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return values, nil
}

func (r *rowsReader) NextResultSet() bool { return r.rows.NextResultSet() }
func (r *rowsReader) Err() error          { return r.rows.Err() }
