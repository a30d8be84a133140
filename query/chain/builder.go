package chain

import (
	"fmt"

	"github.com/satishbabariya/batchsql/query/expr"
)

// MemberKind says how a member of a mapped table is persisted.
type MemberKind int

const (
	MemberOther MemberKind = iota
	MemberColumn
	MemberAssociation
)

// Member is the mapping layer's answer for one member of a table.
type Member struct {
	Kind        MemberKind
	Column      string
	Association Association
}

// Mapping is the part of the metadata collaborator the builder needs.
type Mapping interface {
	// Table resolves a queryable source name to its physical table.
	Table(name string) (string, bool)
	// Member describes a member of a physical table.
	Member(table, member string) (Member, bool)
}

var predicateFilters = map[string]bool{
	"Where": true, "Any": true, "All": true,
	"Single": true, "SingleOrDefault": true,
	"First": true, "FirstOrDefault": true,
	"Last": true, "LastOrDefault": true,
	"Count": true, "LongCount": true,
}

var projections = map[string]bool{
	"Select": true, "SelectMany": true,
	"Sum": true, "Min": true, "Max": true, "Average": true,
}

var terminals = map[string]bool{
	"Any": true, "Single": true, "SingleOrDefault": true,
	"First": true, "FirstOrDefault": true, "Last": true, "LastOrDefault": true,
	"Count": true, "LongCount": true,
	"Sum": true, "Min": true, "Max": true, "Average": true,
	"Distinct": true, "ToList": true, "ToArray": true,
	"AsEnumerable": true, "AsQueryable": true,
}

// Context carries the state threaded through a build: lambda parameter
// bindings and the mapping oracle.
type Context struct {
	Mapping Mapping
	params  map[string][]*Part
}

// NewContext returns a context with no bindings.
func NewContext(m Mapping) *Context {
	return &Context{Mapping: m, params: make(map[string][]*Part)}
}

// Bind binds a lambda parameter to a row-source part until the returned
// function is called. Inner bindings shadow outer ones.
func (ctx *Context) Bind(name string, p *Part) func() {
	ctx.params[name] = append(ctx.params[name], p)
	return func() {
		stack := ctx.params[name]
		ctx.params[name] = stack[:len(stack)-1]
	}
}

// Lookup returns the part a parameter is bound to.
func (ctx *Context) Lookup(name string) (*Part, bool) {
	stack := ctx.params[name]
	if len(stack) == 0 {
		return nil, false
	}
	return stack[len(stack)-1], true
}

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedExpression, fmt.Sprintf(format, args...))
}

// Build normalizes a query-description node into a chain.
func Build(ctx *Context, n *expr.Node) (*Chain, error) {
	c := New()
	for n != nil && (n.Kind == expr.KindNot || n.Kind == expr.KindConvert) {
		if n.Kind == expr.KindNot {
			c.Negated = !c.Negated
		}
		n = n.Operand
	}
	if n == nil {
		return nil, unsupported("empty expression")
	}

	calls := flatten(n)
	first := calls[0]
	switch first.Kind {
	case expr.KindTable:
		table, ok := ctx.Mapping.Table(first.Table)
		if !ok {
			return nil, unsupported("unknown table %q", first.Table)
		}
		if err := c.Append(&Part{Kind: PartTable, Table: table, Entity: table}); err != nil {
			return nil, err
		}
	case expr.KindParameter:
		src, ok := ctx.Lookup(first.Name)
		if !ok {
			return nil, unsupported("parameter %q is not bound to a row source", first.Name)
		}
		if err := c.Append(&Part{Kind: PartReference, Ref: src, Entity: src.Entity}); err != nil {
			return nil, err
		}
	case expr.KindConstant:
		if err := c.Append(&Part{Kind: PartFixed, Value: first.Value}); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, unsupported("chain cannot start with %s", first)
	}

	for _, call := range calls[1:] {
		var err error
		switch call.Kind {
		case expr.KindMember:
			err = memberStep(ctx, c, call)
		case expr.KindCall:
			err = callStep(ctx, c, call)
		default:
			err = unsupported("%s", call)
		}
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// flatten turns nested calls and member accesses into call order.
func flatten(n *expr.Node) []*expr.Node {
	var out []*expr.Node
	for n != nil {
		n = n.Unwrap()
		out = append(out, n)
		n = n.Source()
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func callStep(ctx *Context, c *Chain, call *expr.Node) error {
	args := call.Args[1:]
	switch {
	case len(args) == 0 && terminals[call.Method]:
		return nil
	case len(args) == 1 && predicateFilters[call.Method] && args[0].IsLambda(1):
		return filterStep(ctx, c, args[0])
	case len(args) == 1 && projections[call.Method] && args[0].IsLambda(1):
		return selectStep(ctx, c, args[0])
	case (call.Method == "Join" || call.Method == "GroupJoin") && len(args) == 4:
		return joinStep(ctx, c, args)
	}
	return unsupported("method %s with %d argument(s)", call.Method, len(args))
}

func filterStep(ctx *Context, c *Chain, lambda *expr.Node) error {
	src := c.LastRowSource()
	if src == nil {
		return unsupported("filter %s has no row source", lambda)
	}
	restore := ctx.Bind(lambda.Params[0], src)
	defer restore()

	pred, err := buildOperand(ctx, lambda.Body, nil)
	if err != nil {
		return err
	}
	return c.Append(&Part{Kind: PartFilter, Predicate: pred, Entity: src.Entity})
}

func selectStep(ctx *Context, c *Chain, lambda *expr.Node) error {
	src := c.LastRowSource()
	if src == nil {
		return unsupported("projection %s has no row source", lambda)
	}
	restore := ctx.Bind(lambda.Params[0], src)
	defer restore()

	sel, entity, err := buildSelection(ctx, lambda.Body)
	if err != nil {
		return err
	}
	return c.Append(&Part{Kind: PartSelect, Selection: sel, Entity: entity})
}

func joinStep(ctx *Context, c *Chain, args []*expr.Node) error {
	outer := c.LastRowSource()
	if outer == nil {
		return unsupported("join has no outer row source")
	}
	innerNode, outerKeyL, innerKeyL, resultL := args[0], args[1], args[2], args[3]
	if !outerKeyL.IsLambda(1) || !innerKeyL.IsLambda(1) {
		return unsupported("join key selectors must take one parameter")
	}
	if !resultL.IsLambda(1) && !resultL.IsLambda(2) {
		return unsupported("join result selector must take one or two parameters")
	}

	inner, err := Build(ctx, innerNode)
	if err != nil {
		return err
	}
	innerSrc := inner.LastRowSource()
	if innerSrc == nil {
		return unsupported("join inner side %s is not a row source", innerNode)
	}

	restore := ctx.Bind(outerKeyL.Params[0], outer)
	outerKey, err := Build(ctx, outerKeyL.Body)
	restore()
	if err != nil {
		return err
	}
	restore = ctx.Bind(innerKeyL.Params[0], innerSrc)
	innerKey, err := Build(ctx, innerKeyL.Body)
	restore()
	if err != nil {
		return err
	}

	restoreOuter := ctx.Bind(resultL.Params[0], outer)
	defer restoreOuter()
	if len(resultL.Params) == 2 {
		restoreInner := ctx.Bind(resultL.Params[1], innerSrc)
		defer restoreInner()
	}
	sel, entity, err := buildSelection(ctx, resultL.Body)
	if err != nil {
		return err
	}

	return c.Append(&Part{
		Kind:      PartJoin,
		Selection: sel,
		Entity:    entity,
		Join: &JoinSpec{
			Outer:    outer,
			Inner:    inner,
			OuterKey: outerKey,
			InnerKey: innerKey,
		},
	})
}

func buildSelection(ctx *Context, body *expr.Node) (*Selection, string, error) {
	body = body.Unwrap()
	if body.Kind == expr.KindNew {
		sel := &Selection{}
		for _, f := range body.Fields {
			ch, err := Build(ctx, f.Value)
			if err != nil {
				return nil, "", fmt.Errorf("field %s: %w", f.Name, err)
			}
			sel.Fields = append(sel.Fields, NamedChain{Name: f.Name, Chain: ch})
		}
		return sel, "", nil
	}

	ch, err := Build(ctx, body)
	if err != nil {
		return nil, "", err
	}
	entity := ""
	if last := ch.Last(); last != nil && last.IsRowSource() {
		entity = last.Entity
	}
	return &Selection{Simple: ch}, entity, nil
}

func buildOperand(ctx *Context, n *expr.Node, parent *TreeNode) (Operand, error) {
	negated := false
	node := n
	for node != nil && (node.Kind == expr.KindNot || node.Kind == expr.KindConvert) {
		if node.Kind == expr.KindNot {
			negated = !negated
		}
		node = node.Operand
	}
	if node == nil {
		return Operand{}, unsupported("empty predicate")
	}

	if node.Kind == expr.KindBinary {
		t := &TreeNode{Kind: classify(node.Op), Op: node.Op, Negated: negated, Parent: parent}
		left, err := buildOperand(ctx, node.Left, t)
		if err != nil {
			return Operand{}, err
		}
		right, err := buildOperand(ctx, node.Right, t)
		if err != nil {
			return Operand{}, err
		}
		t.Left, t.Right = left, right
		return Operand{Tree: t}, nil
	}

	ch, err := Build(ctx, n)
	if err != nil {
		return Operand{}, err
	}
	for _, p := range ch.Parts {
		p.Parent = parent
	}
	return Operand{Chain: ch}, nil
}

func memberStep(ctx *Context, c *Chain, call *expr.Node) error {
	last := c.Last()
	if last.IsRowSource() && last.Entity != "" {
		if m, ok := ctx.Mapping.Member(last.Entity, call.Member); ok {
			switch m.Kind {
			case MemberColumn:
				return c.Append(&Part{Kind: PartColumn, Column: m.Column})
			case MemberAssociation:
				a := m.Association
				return c.Append(&Part{Kind: PartAssociation, Association: &a, Entity: a.OtherTable})
			}
		}
	}
	return c.Append(&Part{
		Kind:     PartProperty,
		Property: call.Member,
		Entity:   propertyEntity(last, call.Member),
	})
}

// propertyEntity finds the table a named projection field yields, if any.
func propertyEntity(last *Part, name string) string {
	src := last.Unwrap()
	if src.Kind != PartSelect && src.Kind != PartJoin {
		return ""
	}
	ch, ok := src.Selection.Field(name)
	if !ok {
		return ""
	}
	if l := ch.Last(); l != nil && l.IsRowSource() {
		return l.Entity
	}
	return ""
}
