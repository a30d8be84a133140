// Package expr defines the query-description tree handed to the compiler.
//
// A tree describes a navigation query the same way a LINQ expression tree
// does: method-style calls (Where, Select, Join, ...) applied to a table
// source, lambdas whose parameters are bound to the rows flowing through the
// call, member accesses on those rows, and boolean/comparison operators.
package expr

import (
	"fmt"
	"strings"
)

// Kind identifies the variant held by a Node.
type Kind int

const (
	KindInvalid Kind = iota
	KindTable
	KindCall
	KindMember
	KindParameter
	KindConstant
	KindLambda
	KindNot
	KindConvert
	KindBinary
	KindNew
)

var kindNames = map[Kind]string{
	KindInvalid:   "invalid",
	KindTable:     "table",
	KindCall:      "call",
	KindMember:    "member",
	KindParameter: "param",
	KindConstant:  "const",
	KindLambda:    "lambda",
	KindNot:       "not",
	KindConvert:   "convert",
	KindBinary:    "binary",
	KindNew:       "new",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// BinaryOp is the operator of a Binary node.
type BinaryOp string

const (
	OpAndAlso            BinaryOp = "AndAlso"
	OpOrElse             BinaryOp = "OrElse"
	OpEqual              BinaryOp = "Equal"
	OpNotEqual           BinaryOp = "NotEqual"
	OpLessThan           BinaryOp = "LessThan"
	OpLessThanOrEqual    BinaryOp = "LessThanOrEqual"
	OpGreaterThan        BinaryOp = "GreaterThan"
	OpGreaterThanOrEqual BinaryOp = "GreaterThanOrEqual"
	OpAdd                BinaryOp = "Add"
	OpSubtract           BinaryOp = "Subtract"
	OpMultiply           BinaryOp = "Multiply"
	OpDivide             BinaryOp = "Divide"
	OpModulo             BinaryOp = "Modulo"
)

// Valid reports whether op is one of the known operators.
func (op BinaryOp) Valid() bool {
	switch op {
	case OpAndAlso, OpOrElse, OpEqual, OpNotEqual,
		OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual,
		OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo:
		return true
	}
	return false
}

// Field is one named member of a New node.
type Field struct {
	Name  string
	Value *Node
}

// Node is a single node of a query-description tree. Only the fields that
// belong to Kind are meaningful.
type Node struct {
	Kind Kind

	Table string // KindTable

	Method string  // KindCall
	Args   []*Node // KindCall; Args[0] is the source the method is applied to

	Object *Node  // KindMember
	Member string // KindMember

	Name string // KindParameter

	Value any // KindConstant

	Params []string // KindLambda
	Body   *Node    // KindLambda

	Operand *Node // KindNot, KindConvert

	Op    BinaryOp // KindBinary
	Left  *Node    // KindBinary
	Right *Node    // KindBinary

	Fields []Field // KindNew
}

// Table returns a node naming a queryable table.
func Table(name string) *Node { return &Node{Kind: KindTable, Table: name} }

// Call returns a method-style call; source is the receiver.
func Call(method string, source *Node, args ...*Node) *Node {
	return &Node{Kind: KindCall, Method: method, Args: append([]*Node{source}, args...)}
}

// Member returns a member access on object.
func Member(object *Node, name string) *Node {
	return &Node{Kind: KindMember, Object: object, Member: name}
}

// Param returns a reference to a lambda parameter.
func Param(name string) *Node { return &Node{Kind: KindParameter, Name: name} }

// Const returns a literal or bound value.
func Const(v any) *Node { return &Node{Kind: KindConstant, Value: v} }

// Lambda returns a lambda with the given body and parameter names.
func Lambda(body *Node, params ...string) *Node {
	return &Node{Kind: KindLambda, Params: params, Body: body}
}

// Not returns a boolean negation of operand.
func Not(operand *Node) *Node { return &Node{Kind: KindNot, Operand: operand} }

// Convert returns a type-conversion wrapper around operand.
func Convert(operand *Node) *Node { return &Node{Kind: KindConvert, Operand: operand} }

// Binary returns left op right.
func Binary(op BinaryOp, left, right *Node) *Node {
	return &Node{Kind: KindBinary, Op: op, Left: left, Right: right}
}

// And and Eq are shorthands for the two operators the graph builder cares about.
func And(left, right *Node) *Node { return Binary(OpAndAlso, left, right) }
func Eq(left, right *Node) *Node  { return Binary(OpEqual, left, right) }

// New returns a multi-field object construction.
func New(fields ...Field) *Node { return &Node{Kind: KindNew, Fields: fields} }

// F builds a Field for New.
func F(name string, value *Node) Field { return Field{Name: name, Value: value} }

// Path is shorthand for a chain of member accesses starting at a parameter:
// Path("c", "Orders", "Total") is c.Orders.Total.
func Path(param string, members ...string) *Node {
	n := Param(param)
	for _, m := range members {
		n = Member(n, m)
	}
	return n
}

// Source returns the node a call or member access is applied to, or nil.
func (n *Node) Source() *Node {
	switch n.Kind {
	case KindCall:
		if len(n.Args) > 0 {
			return n.Args[0]
		}
	case KindMember:
		return n.Object
	}
	return nil
}

// Unwrap strips Convert wrappers.
func (n *Node) Unwrap() *Node {
	for n != nil && n.Kind == KindConvert {
		n = n.Operand
	}
	return n
}

// IsLambda reports whether n is a lambda with exactly arity parameters.
func (n *Node) IsLambda(arity int) bool {
	return n != nil && n.Kind == KindLambda && len(n.Params) == arity
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	switch n.Kind {
	case KindTable:
		return n.Table
	case KindCall:
		args := make([]string, 0, len(n.Args))
		for _, a := range n.Args[1:] {
			args = append(args, a.String())
		}
		return fmt.Sprintf("%s.%s(%s)", n.Args[0], n.Method, strings.Join(args, ", "))
	case KindMember:
		return n.Object.String() + "." + n.Member
	case KindParameter:
		return n.Name
	case KindConstant:
		if s, ok := n.Value.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%v", n.Value)
	case KindLambda:
		return fmt.Sprintf("(%s) => %s", strings.Join(n.Params, ", "), n.Body)
	case KindNot:
		return "!" + n.Operand.String()
	case KindConvert:
		return "convert(" + n.Operand.String() + ")"
	case KindBinary:
		return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
	case KindNew:
		parts := make([]string, len(n.Fields))
		for i, f := range n.Fields {
			parts[i] = f.Name + " = " + f.Value.String()
		}
		return "new { " + strings.Join(parts, ", ") + " }"
	}
	return n.Kind.String()
}
