// Package result materializes the result sets of an executed batch into
// typed, indexable tables.
package result

import (
	"fmt"

	"github.com/satishbabariya/batchsql/internal/debug"
)

type pendingIndex struct {
	column string
	unique bool
}

// Set maps table names to their materialized tables.
type Set struct {
	tables  map[string]*Table
	order   []string
	pending map[string][]pendingIndex
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{
		tables:  make(map[string]*Table),
		pending: make(map[string][]pendingIndex),
	}
}

// Materialize reads one result set per entry of readOrder from r.
func Materialize(readOrder []string, r Reader) (*Set, error) {
	s := NewSet()
	if err := s.Read(readOrder, r); err != nil {
		return s, err
	}
	return s, nil
}

// DeclareIndex declares a hash index on table.column. Tables not read yet
// get the index when they are created.
func (s *Set) DeclareIndex(table, column string, unique bool) error {
	if t, ok := s.tables[table]; ok {
		return t.DeclareIndex(column, unique)
	}
	s.pending[table] = append(s.pending[table], pendingIndex{column: column, unique: unique})
	return nil
}

// Table returns the named table, or nil.
func (s *Set) Table(name string) *Table { return s.tables[name] }

// Lookup is Table that fails for a table that was never read.
func (s *Set) Lookup(name string) (*Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// Tables returns the tables in the order they were first read.
func (s *Set) Tables() []*Table {
	out := make([]*Table, len(s.order))
	for i, name := range s.order {
		out[i] = s.tables[name]
	}
	return out
}

// Read consumes the result sets of r in order, pairing each with the next
// name of readOrder. Rows read before a failure stay in the set.
func (s *Set) Read(readOrder []string, r Reader) error {
	for i, name := range readOrder {
		if i > 0 && !r.NextResultSet() {
			if err := r.Err(); err != nil {
				return fmt.Errorf("advance to result set %d (%s): %w", i, name, err)
			}
			return fmt.Errorf("%w: got %d result sets for %d tables", ErrResultSetCount, i, len(readOrder))
		}
		if err := s.readOne(name, r); err != nil {
			return err
		}
	}
	if len(readOrder) > 0 && r.NextResultSet() {
		return fmt.Errorf("%w: more than %d result sets", ErrResultSetCount, len(readOrder))
	}
	return r.Err()
}

func (s *Set) readOne(name string, r Reader) error {
	types, err := r.Columns()
	if err != nil {
		return fmt.Errorf("columns of %s: %w", name, err)
	}

	t, ok := s.tables[name]
	if !ok {
		cols := make([]Column, len(types))
		for i, ct := range types {
			cols[i] = Column{Name: ct.Name, DBType: ct.DatabaseType, Family: FamilyOf(ct.DatabaseType)}
		}
		t = newTable(s, name, cols)
		for _, p := range s.pending[name] {
			if err := t.DeclareIndex(p.column, p.unique); err != nil {
				return err
			}
		}
		delete(s.pending, name)
		s.tables[name] = t
		s.order = append(s.order, name)
	} else if len(types) != len(t.Columns) {
		return fmt.Errorf("%w: %s read again with %d columns, had %d", ErrTypeMismatch, name, len(types), len(t.Columns))
	}

	before := t.Len()
	for r.Next() {
		values, err := r.Values()
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := t.add(values); err != nil {
			return err
		}
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	debug.Debug("result set read", "table", name, "rows", t.Len()-before)
	return nil
}
