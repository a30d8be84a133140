package graph

import (
	"fmt"

	"github.com/satishbabariya/batchsql/query/chain"
)

// Schema is the metadata the graph builder needs.
type Schema interface {
	PKFields(table string) []string
}

// cursor is the builder's position while walking a chain: the current table
// node, or the complex projection whose named fields later property accesses
// resolve through.
type cursor struct {
	table NodeID
	sel   *chain.Part
}

var noCursor = cursor{table: NoNode}

// Builder turns chains into a table graph.
type Builder struct {
	schema Schema
	g      *Graph

	// provenance maps every processed row-source part to the position it
	// produced; ends maps every walked chain to its final position.
	provenance map[*chain.Part]cursor
	ends       map[*chain.Chain]cursor
}

// NewBuilder returns a builder with an empty graph.
func NewBuilder(schema Schema) *Builder {
	return &Builder{
		schema:     schema,
		g:          New(),
		provenance: make(map[*chain.Part]cursor),
		ends:       make(map[*chain.Chain]cursor),
	}
}

// Build walks every chain and returns the finished graph.
func Build(schema Schema, chains ...*chain.Chain) (*Graph, error) {
	b := NewBuilder(schema)
	for _, c := range chains {
		if err := b.Add(c); err != nil {
			return nil, err
		}
	}
	return b.Finish()
}

// Add extends the graph with one chain.
func (b *Builder) Add(c *chain.Chain) error {
	_, err := b.walk(c)
	return err
}

// NodeOf returns the table node a row-source part was resolved to.
func (b *Builder) NodeOf(p *chain.Part) (NodeID, bool) {
	cur, ok := b.provenance[p]
	if !ok || cur.table == NoNode {
		return NoNode, false
	}
	return cur.table, true
}

// Finish checks that every discovered table is reachable from the root and
// returns the graph.
func (b *Builder) Finish() (*Graph, error) {
	if b.g.Root == NoNode {
		return nil, ErrNoRootTable
	}
	reach := b.g.Reachable()
	for _, n := range b.g.Nodes {
		if !n.Removed && !reach[n.ID] {
			return nil, &NoConnectionError{Table: n.Table}
		}
	}
	return b.g, nil
}

func (b *Builder) walk(c *chain.Chain) (cursor, error) {
	cur := noCursor
	for _, p := range c.Parts {
		var err error
		switch p.Kind {
		case chain.PartTable:
			cur = b.table(p)
		case chain.PartReference:
			cur, err = b.reference(p)
		case chain.PartAssociation:
			cur, err = b.association(cur, p)
		case chain.PartColumn:
			if cur.table == NoNode {
				return noCursor, fmt.Errorf("%w: column %s", ErrNoCurrentTable, p.Column)
			}
			b.g.Node(cur.table).Use(p.Column)
		case chain.PartProperty:
			cur, err = b.property(cur, p)
		case chain.PartFilter:
			if cur.table == NoNode && cur.sel == nil {
				return noCursor, fmt.Errorf("%w: %s", ErrNoCurrentTable, p)
			}
			b.provenance[p] = cur
			err = b.operand(p.Predicate)
		case chain.PartSelect:
			cur, err = b.selection(p)
		case chain.PartJoin:
			cur, err = b.join(p)
		case chain.PartFixed:
		}
		if err != nil {
			return noCursor, err
		}
		if p.IsRowSource() {
			b.provenance[p] = cur
		}
	}
	b.ends[c] = cur
	return cur, nil
}

func (b *Builder) table(p *chain.Part) cursor {
	if cur, ok := b.provenance[p]; ok {
		return cur
	}
	id := b.g.Add(p.Table)
	if b.g.Root == NoNode {
		b.g.Root = id
	}
	return cursor{table: id}
}

func (b *Builder) reference(p *chain.Part) (cursor, error) {
	src := p.Unwrap()
	cur, ok := b.provenance[src]
	if !ok {
		return noCursor, fmt.Errorf("%w: reference to unprocessed %s", ErrNoCurrentTable, src)
	}
	return cur, nil
}

func (b *Builder) association(cur cursor, p *chain.Part) (cursor, error) {
	if cur.table == NoNode {
		return noCursor, fmt.Errorf("%w: %s", ErrNoCurrentTable, p)
	}
	a := p.Association
	target := b.g.Add(a.OtherTable)
	b.g.Connect(cur.table, []string{a.ThisKey}, target, []string{a.OtherKey})
	return cursor{table: target}, nil
}

func (b *Builder) property(cur cursor, p *chain.Part) (cursor, error) {
	if cur.sel == nil {
		return noCursor, fmt.Errorf("%w: %s", ErrUnresolvedProperty, p.Property)
	}
	ch, ok := cur.sel.Selection.Field(p.Property)
	if !ok {
		return noCursor, fmt.Errorf("%w: %s", ErrUnresolvedProperty, p.Property)
	}
	end, ok := b.ends[ch]
	if !ok {
		return noCursor, fmt.Errorf("%w: field %s was not processed", ErrNoCurrentTable, p.Property)
	}
	return end, nil
}

// selection walks the chains of a Select or Join payload. A simple selection
// resolves to the position its chain ends at; a complex one stays pending
// until a property access picks one of its fields.
func (b *Builder) selection(p *chain.Part) (cursor, error) {
	sel := p.Selection
	if !sel.IsComplex() {
		return b.walk(sel.Simple)
	}
	for _, f := range sel.Fields {
		if _, err := b.walk(f.Chain); err != nil {
			return noCursor, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return cursor{table: NoNode, sel: p}, nil
}

func (b *Builder) join(p *chain.Part) (cursor, error) {
	if _, err := b.walk(p.Join.Inner); err != nil {
		return noCursor, fmt.Errorf("join inner side: %w", err)
	}
	cur, err := b.selection(p)
	if err != nil {
		return noCursor, err
	}

	outer, outerFields, ok := b.reduceKey(p.Join.OuterKey)
	if !ok {
		return noCursor, fmt.Errorf("%w: outer key %s", ErrUnsupportedJoin, p.Join.OuterKey)
	}
	inner, innerFields, ok := b.reduceKey(p.Join.InnerKey)
	if !ok {
		return noCursor, fmt.Errorf("%w: inner key %s", ErrUnsupportedJoin, p.Join.InnerKey)
	}
	if len(outerFields) != len(innerFields) {
		return noCursor, fmt.Errorf("%w: %d outer key field(s) against %d inner", ErrUnsupportedJoin, len(outerFields), len(innerFields))
	}
	if !b.connect(outer, outerFields, inner, innerFields) {
		return noCursor, fmt.Errorf("%w: between %s and %s", ErrConnectionNotFound,
			b.g.Node(outer).Table, b.g.Node(inner).Table)
	}
	return cur, nil
}

func (b *Builder) operand(op chain.Operand) error {
	if op.Chain != nil {
		_, err := b.walk(op.Chain)
		return err
	}
	if op.Tree == nil {
		return nil
	}
	if err := b.operand(op.Tree.Left); err != nil {
		return err
	}
	if err := b.operand(op.Tree.Right); err != nil {
		return err
	}
	t := op.Tree
	if !t.IsTopLevelChainEquality() || t.Left.Chain == nil || t.Right.Chain == nil {
		return nil
	}
	left, leftFields, ok := b.reduceKey(t.Left.Chain)
	if !ok {
		return nil
	}
	right, rightFields, ok := b.reduceKey(t.Right.Chain)
	if !ok || len(leftFields) != len(rightFields) {
		return nil
	}
	b.connect(left, leftFields, right, rightFields)
	return nil
}

// reduceKey resolves a key chain to the table node and fields it compares.
// Supported shapes: a bare reference (the table's primary key), a reference
// followed by a column or an association (its local key), and a reference,
// association and the target's primary-key column (the association's local
// key again).
func (b *Builder) reduceKey(c *chain.Chain) (NodeID, []string, bool) {
	if c == nil || c.Len() == 0 || c.Len() > 3 || c.Parts[0].Kind != chain.PartReference {
		return NoNode, nil, false
	}
	id, ok := b.NodeOf(c.Parts[0].Unwrap())
	if !ok {
		return NoNode, nil, false
	}
	table := b.g.Node(id).Table

	switch c.Len() {
	case 1:
		pk := b.schema.PKFields(table)
		if len(pk) == 0 {
			return NoNode, nil, false
		}
		return id, pk, true
	case 2:
		switch p := c.Parts[1]; p.Kind {
		case chain.PartColumn:
			return id, []string{p.Column}, true
		case chain.PartAssociation:
			return id, []string{p.Association.ThisKey}, true
		}
	case 3:
		a, col := c.Parts[1], c.Parts[2]
		if a.Kind != chain.PartAssociation || col.Kind != chain.PartColumn {
			break
		}
		pk := b.schema.PKFields(a.Association.OtherTable)
		if len(pk) == 1 && pk[0] == col.Column && col.Column == a.Association.OtherKey {
			return id, []string{a.Association.ThisKey}, true
		}
	}
	return NoNode, nil, false
}

// connect adds or extends the connection between two keyed nodes, oriented
// from the side already reachable from the root. It reports false when
// neither side is reachable.
func (b *Builder) connect(a NodeID, aFields []string, c NodeID, cFields []string) bool {
	if a == c {
		return true
	}
	reach := b.g.Reachable()
	_, linked := b.g.Between(a, c)
	switch {
	case reach[a] && reach[c]:
		// Both ends are already placed; only an existing edge may grow.
		if linked {
			b.g.Connect(a, aFields, c, cFields)
		}
	case reach[a]:
		b.g.Connect(a, aFields, c, cFields)
	case reach[c]:
		b.g.Connect(c, cFields, a, aFields)
	default:
		return false
	}
	return true
}
