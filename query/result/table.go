package result

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// Column describes one column of a result table.
type Column struct {
	Name   string
	DBType string
	Family Family
}

type index struct {
	unique bool
	rows   map[any][]*Row
}

// Table holds the rows read for one table name. Rows from every result set
// carrying that name accumulate here.
type Table struct {
	Name    string
	Columns []Column
	Rows    []*Row

	set     *Set
	ordinal map[string]int
	indexes map[string]*index
}

func newTable(set *Set, name string, columns []Column) *Table {
	t := &Table{
		Name:    name,
		Columns: columns,
		set:     set,
		ordinal: make(map[string]int, len(columns)),
		indexes: make(map[string]*index),
	}
	for i, c := range columns {
		t.ordinal[c.Name] = i
	}
	return t
}

// Column returns the position of the named column.
func (t *Table) Column(name string) (int, error) {
	i, ok := t.ordinal[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, name)
	}
	return i, nil
}

// DeclareIndex maintains a hash index on column as rows are added. A unique
// index rejects a second row with the same non-null value.
func (t *Table) DeclareIndex(column string, unique bool) error {
	if len(t.Rows) > 0 {
		return fmt.Errorf("%w: %s.%s", ErrIndexAfterRows, t.Name, column)
	}
	if _, err := t.Column(column); err != nil {
		return err
	}
	if ix, ok := t.indexes[column]; ok {
		ix.unique = ix.unique || unique
		return nil
	}
	t.indexes[column] = &index{unique: unique, rows: make(map[any][]*Row)}
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

func (t *Table) add(values []any) (*Row, error) {
	if len(values) != len(t.Columns) {
		return nil, fmt.Errorf("%w: %s has %d columns, row has %d", ErrTypeMismatch, t.Name, len(t.Columns), len(values))
	}
	r := &Row{table: t, values: make([]any, len(values))}
	for i, v := range values {
		c, err := convert(t.Columns[i].Family, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, t.Columns[i].Name, err)
		}
		r.values[i] = c
	}

	for name, ix := range t.indexes {
		v := r.values[t.ordinal[name]]
		if v == nil {
			continue
		}
		k := key(v)
		if ix.unique && len(ix.rows[k]) > 0 {
			return nil, fmt.Errorf("%w: %s.%s = %v", ErrDuplicateKey, t.Name, name, v)
		}
	}
	for name, ix := range t.indexes {
		if v := r.values[t.ordinal[name]]; v != nil {
			ix.rows[key(v)] = append(ix.rows[key(v)], r)
		}
	}
	t.Rows = append(t.Rows, r)
	return r, nil
}

// Find returns the rows whose column equals value, through the column's index
// when one was declared. A nil value matches nothing.
func (t *Table) Find(column string, value any) ([]*Row, error) {
	i, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	v, err := convert(t.Columns[i].Family, value)
	if err != nil || v == nil {
		return nil, err
	}
	k := key(v)
	if ix, ok := t.indexes[column]; ok {
		return ix.rows[k], nil
	}
	var out []*Row
	for _, r := range t.Rows {
		if c := r.values[i]; c != nil && key(c) == k {
			out = append(out, r)
		}
	}
	return out, nil
}

// Row is one materialized row. Values are stored in their column's family;
// nil marks a database null.
type Row struct {
	table  *Table
	values []any
}

// Table returns the table the row belongs to.
func (r *Row) Table() *Table { return r.table }

// Values returns the stored values in column order.
func (r *Row) Values() []any { return r.values }

func (r *Row) get(column string, f Family) (any, error) {
	i, err := r.table.Column(column)
	if err != nil {
		return nil, err
	}
	if c := r.table.Columns[i]; c.Family != f {
		return nil, fmt.Errorf("%w: %s.%s is %s, not %s", ErrTypeMismatch, r.table.Name, column, c.Family, f)
	}
	return r.values[i], nil
}

func (r *Row) nullErr(column string) error {
	return fmt.Errorf("%w: %s.%s", ErrNullValue, r.table.Name, column)
}

// Value returns the stored value of column, nil when null.
func (r *Row) Value(column string) (any, error) {
	i, err := r.table.Column(column)
	if err != nil {
		return nil, err
	}
	return r.values[i], nil
}

// IsNull reports whether column holds a database null.
func (r *Row) IsNull(column string) (bool, error) {
	v, err := r.Value(column)
	return v == nil, err
}

// Int64 returns column as an integer. A null value is an error.
func (r *Row) Int64(column string) (int64, error) {
	v, err := r.get(column, FamilyInt)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, r.nullErr(column)
	}
	return v.(int64), nil
}

// NullInt64 returns column as a nullable integer.
func (r *Row) NullInt64(column string) (sql.NullInt64, error) {
	v, err := r.get(column, FamilyInt)
	if err != nil || v == nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: v.(int64), Valid: true}, nil
}

// Decimal returns column as an exact decimal. A null value is an error.
func (r *Row) Decimal(column string) (decimal.Decimal, error) {
	v, err := r.get(column, FamilyFloat)
	if err != nil {
		return decimal.Zero, err
	}
	if v == nil {
		return decimal.Zero, r.nullErr(column)
	}
	return v.(decimal.Decimal), nil
}

// NullDecimal returns column as a nullable decimal.
func (r *Row) NullDecimal(column string) (decimal.NullDecimal, error) {
	v, err := r.get(column, FamilyFloat)
	if err != nil || v == nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: v.(decimal.Decimal), Valid: true}, nil
}

// Float64 returns column as a float.
func (r *Row) Float64(column string) (float64, error) {
	d, err := r.Decimal(column)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// NullFloat64 returns column as a nullable float.
func (r *Row) NullFloat64(column string) (sql.NullFloat64, error) {
	d, err := r.NullDecimal(column)
	if err != nil || !d.Valid {
		return sql.NullFloat64{}, err
	}
	return sql.NullFloat64{Float64: d.Decimal.InexactFloat64(), Valid: true}, nil
}

// String returns column as text. A null value is an error.
func (r *Row) String(column string) (string, error) {
	v, err := r.get(column, FamilyText)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", r.nullErr(column)
	}
	return v.(string), nil
}

// NullString returns column as nullable text.
func (r *Row) NullString(column string) (sql.NullString, error) {
	v, err := r.get(column, FamilyText)
	if err != nil || v == nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: v.(string), Valid: true}, nil
}

// Bool returns column as a boolean. A null value is an error.
func (r *Row) Bool(column string) (bool, error) {
	v, err := r.get(column, FamilyBool)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, r.nullErr(column)
	}
	return v.(bool), nil
}

// NullBool returns column as a nullable boolean.
func (r *Row) NullBool(column string) (sql.NullBool, error) {
	v, err := r.get(column, FamilyBool)
	if err != nil || v == nil {
		return sql.NullBool{}, err
	}
	return sql.NullBool{Bool: v.(bool), Valid: true}, nil
}

// Referenced follows column to the first row of table whose targetColumn
// holds the same value. It returns nil when column is null or nothing
// matches.
func (r *Row) Referenced(column, table, targetColumn string) (*Row, error) {
	v, err := r.Value(column)
	if err != nil || v == nil {
		return nil, err
	}
	t, err := r.table.set.Lookup(table)
	if err != nil {
		return nil, err
	}
	rows, err := t.Find(targetColumn, v)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}
