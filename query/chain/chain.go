// Package chain normalizes query-description trees into chains: linear
// sequences of typed steps (table, column, association, filter, projection,
// join, ...) with nested sub-chains for filters, projections and joins.
package chain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedExpression = errors.New("unsupported expression")
	ErrAlreadyAttached       = errors.New("chain part is already attached to a chain")
)

// PartKind identifies the variant held by a Part.
type PartKind int

const (
	PartTable PartKind = iota
	PartColumn
	PartProperty
	PartAssociation
	PartReference
	PartFilter
	PartSelect
	PartJoin
	PartFixed
)

func (k PartKind) String() string {
	switch k {
	case PartTable:
		return "Table"
	case PartColumn:
		return "Column"
	case PartProperty:
		return "Property"
	case PartAssociation:
		return "Association"
	case PartReference:
		return "Reference"
	case PartFilter:
		return "Filter"
	case PartSelect:
		return "Select"
	case PartJoin:
		return "Join"
	case PartFixed:
		return "Fixed"
	}
	return fmt.Sprintf("PartKind(%d)", int(k))
}

// Association describes a traversal from one table to another.
type Association struct {
	ThisKey    string
	OtherTable string
	OtherKey   string
	Many       bool
}

// NamedChain is one field of a complex selection.
type NamedChain struct {
	Name  string
	Chain *Chain
}

// Selection is the payload of Select and Join parts. A simple selection has
// a single unnamed chain; a complex one maps field names to chains.
type Selection struct {
	Simple *Chain
	Fields []NamedChain
}

// IsComplex reports whether the selection was built from a multi-field object.
func (s *Selection) IsComplex() bool { return s != nil && s.Simple == nil }

// Field returns the chain selected under name.
func (s *Selection) Field(name string) (*Chain, bool) {
	if s == nil {
		return nil, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Chain, true
		}
	}
	return nil, false
}

// Chains returns every chain of the selection in declaration order.
func (s *Selection) Chains() []*Chain {
	if s == nil {
		return nil
	}
	if s.Simple != nil {
		return []*Chain{s.Simple}
	}
	out := make([]*Chain, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Chain
	}
	return out
}

// JoinSpec is the extra payload of a Join part.
type JoinSpec struct {
	Outer    *Part
	Inner    *Chain
	OuterKey *Chain
	InnerKey *Chain
}

// Part is one step of a chain. Only the fields belonging to Kind are set.
type Part struct {
	Kind PartKind

	// Entity is the mapped table a row-source part yields, when known.
	Entity string

	Table       string       // PartTable
	Column      string       // PartColumn
	Property    string       // PartProperty
	Association *Association // PartAssociation
	Ref         *Part        // PartReference
	Predicate   Operand      // PartFilter
	Selection   *Selection   // PartSelect, PartJoin
	Join        *JoinSpec    // PartJoin
	Value       any          // PartFixed

	// Parent is the enclosing tree node for parts that live inside a
	// predicate tree.
	Parent *TreeNode

	owner *Chain
}

// Chain returns the chain the part was appended to, or nil.
func (p *Part) Chain() *Chain { return p.owner }

// IsRowSource reports whether further parts can traverse from p.
func (p *Part) IsRowSource() bool {
	switch p.Kind {
	case PartTable, PartProperty, PartAssociation, PartReference,
		PartFilter, PartSelect, PartJoin:
		return true
	}
	return false
}

// Unwrap follows Reference parts to the ultimate source.
func (p *Part) Unwrap() *Part {
	for p != nil && p.Kind == PartReference && p.Ref != nil {
		p = p.Ref
	}
	return p
}

func (p *Part) String() string {
	switch p.Kind {
	case PartTable:
		return "Table(" + p.Table + ")"
	case PartColumn:
		return "Column(" + p.Column + ")"
	case PartProperty:
		return "Property(" + p.Property + ")"
	case PartAssociation:
		a := p.Association
		return fmt.Sprintf("Association(%s -> %s.%s)", a.ThisKey, a.OtherTable, a.OtherKey)
	case PartReference:
		src := p.Unwrap()
		return "Ref(" + src.Kind.String() + ":" + src.Entity + ")"
	case PartFilter:
		return "Filter(" + p.Predicate.String() + ")"
	case PartSelect:
		return "Select(" + p.Selection.String() + ")"
	case PartJoin:
		return fmt.Sprintf("Join(%s on %s = %s => %s)", p.Join.Inner, p.Join.OuterKey, p.Join.InnerKey, p.Selection)
	case PartFixed:
		return fmt.Sprintf("Fixed(%v)", p.Value)
	}
	return p.Kind.String()
}

func (s *Selection) String() string {
	if s == nil {
		return ""
	}
	if s.Simple != nil {
		return s.Simple.String()
	}
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = f.Name + ": " + f.Chain.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Chain is an ordered, append-only sequence of parts.
type Chain struct {
	Parts   []*Part
	Negated bool
}

// New returns an empty chain.
func New() *Chain { return &Chain{} }

// Append attaches p to the end of the chain. A part can be attached once.
func (c *Chain) Append(p *Part) error {
	if p.owner != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyAttached, p)
	}
	p.owner = c
	c.Parts = append(c.Parts, p)
	return nil
}

// Len returns the number of parts.
func (c *Chain) Len() int { return len(c.Parts) }

// First returns the first part or nil.
func (c *Chain) First() *Part {
	if len(c.Parts) == 0 {
		return nil
	}
	return c.Parts[0]
}

// Last returns the last part or nil.
func (c *Chain) Last() *Part {
	if len(c.Parts) == 0 {
		return nil
	}
	return c.Parts[len(c.Parts)-1]
}

// LastRowSource returns the most recently appended row-source part.
func (c *Chain) LastRowSource() *Part {
	for i := len(c.Parts) - 1; i >= 0; i-- {
		if c.Parts[i].IsRowSource() {
			return c.Parts[i]
		}
	}
	return nil
}

// IsFixed reports whether the chain is a single literal.
func (c *Chain) IsFixed() bool {
	return len(c.Parts) == 1 && c.Parts[0].Kind == PartFixed
}

func (c *Chain) String() string {
	if c == nil {
		return "<nil>"
	}
	parts := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		parts[i] = p.String()
	}
	s := strings.Join(parts, " > ")
	if c.Negated {
		s = "!" + s
	}
	return "[" + s + "]"
}
