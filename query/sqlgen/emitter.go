// Package sqlgen emits the statement batch for an optimized table graph: one
// unit per table node that declares an intermediate table, fills it from the
// physical table joined against its parent's intermediate, and reads it back.
package sqlgen

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/satishbabariya/batchsql/internal/debug"
	"github.com/satishbabariya/batchsql/query/graph"
)

// Schema is the metadata the emitter needs.
type Schema interface {
	PKFields(table string) []string
	SQLType(table, column string) string
	HasField(table, column string) bool
}

// Options tune the emitted batch.
type Options struct {
	// FastPathKeys are owner-id columns. A non-root table carrying one of
	// them is filtered by the root key directly instead of being joined.
	FastPathKeys []string
}

// Emitter turns table graphs into batches.
type Emitter struct {
	schema  Schema
	dialect Dialect
	opts    Options
}

// NewEmitter creates an emitter for dialect.
func NewEmitter(schema Schema, dialect Dialect, opts Options) *Emitter {
	return &Emitter{schema: schema, dialect: dialect, opts: opts}
}

// Emit walks g from the root in pre-order and emits one unit per table node.
// g is only read.
func (e *Emitter) Emit(g *graph.Graph) (*Batch, error) {
	if g.Root == graph.NoNode {
		return nil, ErrEmptyGraph
	}
	done := debug.Stage("emit", "dialect", e.dialect.Name())

	root := g.Node(g.Root)
	pk := e.schema.PKFields(root.Table)
	if len(pk) != 1 {
		return nil, fmt.Errorf("%w: %s has %d key column(s)", ErrRootKey, root.Table, len(pk))
	}

	// Every occurrence of a table reads the same columns.
	columns := make(map[string][]string)
	g.Walk(func(n *graph.TableNode, _ *graph.Connection, _ int) {
		columns[n.Table] = union(columns[n.Table], n.Columns)
	})
	columns[root.Table] = union(columns[root.Table], pk)

	batch := &Batch{Dialect: e.dialect.Name(), Terminator: e.dialect.Terminator()}
	names := newNamer()
	variables := make(map[graph.NodeID]string)

	var err error
	g.Walk(func(n *graph.TableNode, via *graph.Connection, _ int) {
		if err != nil {
			return
		}
		var u Unit
		u, err = e.unit(n, via, columns[n.Table], pk[0], names, variables)
		if err != nil {
			return
		}
		variables[n.ID] = u.Variable
		batch.Units = append(batch.Units, u)
		batch.ReadOrder = append(batch.ReadOrder, n.Table)
	})
	if err != nil {
		return nil, err
	}

	done("units", len(batch.Units))
	return batch, nil
}

func (e *Emitter) unit(n *graph.TableNode, via *graph.Connection, cols []string, rootKey string,
	names *namer, variables map[graph.NodeID]string) (Unit, error) {
	d := e.dialect
	u := Unit{
		Table:    n.Table,
		Variable: d.Variable(names.next(n.Table)),
	}

	for _, c := range cols {
		typ := e.schema.SQLType(n.Table, c)
		if typ == "" {
			return Unit{}, fmt.Errorf("%w: %s.%s", ErrMissingType, n.Table, c)
		}
		u.Columns = append(u.Columns, Column{Name: c, Type: typ})
	}
	u.Declare = d.Declare(u.Variable, u.Columns)
	u.Drop = d.Drop(u.Variable)
	u.Select = "SELECT * FROM " + u.Variable

	cur, prev := d.Quote("current"), d.Quote("previous")
	quoted := make([]string, len(cols))
	qualified := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.Quote(c)
		qualified[i] = cur + "." + quoted[i]
	}

	var filter string
	switch key, fast := e.fastPath(n, via); {
	case via == nil:
		filter = fmt.Sprintf("WHERE %s.%s = %s", cur, d.Quote(rootKey), d.KeyParam())
		u.UsesKey = true
	case fast:
		filter = fmt.Sprintf("WHERE %s.%s = %s", cur, d.Quote(key), d.KeyParam())
		u.UsesKey = true
	default:
		source, err := e.joinSource(via, variables[via.Source])
		if err != nil {
			return Unit{}, err
		}
		conds := make([]string, len(via.SourceFields))
		for i := range via.SourceFields {
			conds[i] = fmt.Sprintf("%s.%s=%s.%s", cur, d.Quote(via.TargetFields[i]), prev, d.Quote(via.SourceFields[i]))
		}
		filter = fmt.Sprintf("INNER JOIN %s AS %s ON %s", source, prev, strings.Join(conds, " AND "))
	}

	u.Insert = fmt.Sprintf("INSERT INTO %s(%s)\n    SELECT %s\n        FROM %s AS %s\n            %s",
		u.Variable, strings.Join(quoted, ", "), strings.Join(qualified, ", "), d.Quote(n.Table), cur, filter)
	return u, nil
}

// fastPath reports the owner-key column a non-root node is filtered by.
func (e *Emitter) fastPath(n *graph.TableNode, via *graph.Connection) (string, bool) {
	if via == nil {
		return "", false
	}
	for _, key := range e.opts.FastPathKeys {
		if e.schema.HasField(n.Table, key) {
			return key, true
		}
	}
	return "", false
}

// joinSource picks what a connection's target joins against: the parent's
// intermediate table itself when the connection leaves it through its
// primary key, otherwise the distinct join fields of it.
func (e *Emitter) joinSource(c *graph.Connection, parent string) (string, error) {
	sourceKey := sameSet(c.SourceFields, e.schema.PKFields(c.SourceTable))
	targetKey := sameSet(c.TargetFields, e.schema.PKFields(c.TargetTable))
	if !sourceKey && !targetKey {
		return "", fmt.Errorf("%w: %s", ErrJoinWithoutPrimaryKey, c)
	}
	if sourceKey {
		return parent, nil
	}
	fields := make([]string, len(c.SourceFields))
	for i, f := range c.SourceFields {
		fields[i] = e.dialect.Quote(f)
	}
	return fmt.Sprintf("(SELECT DISTINCT %s FROM %s)", strings.Join(fields, ", "), parent), nil
}

// namer hands out collision-free intermediate table names.
type namer struct {
	used map[string]bool
}

func newNamer() *namer { return &namer{used: make(map[string]bool)} }

func (n *namer) next(table string) string {
	base := "table" + normalize(table)
	name := base
	for i := 1; n.used[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	n.used[name] = true
	return name
}

func union(a, b []string) []string {
	out := append(slices.Clone(a), b...)
	sort.Strings(out)
	return slices.Compact(out)
}

func sameSet(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for _, f := range b {
		if !slices.Contains(a, f) {
			return false
		}
	}
	return true
}
