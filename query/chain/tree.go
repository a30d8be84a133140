package chain

import (
	"fmt"

	"github.com/satishbabariya/batchsql/query/expr"
)

// TreeKind classifies a binary tree node.
type TreeKind int

const (
	TreeChainEqual TreeKind = iota
	TreeChainNotEqual
	TreeChainOther
	TreeAnd
	TreeOr
)

func (k TreeKind) String() string {
	switch k {
	case TreeChainEqual:
		return "=="
	case TreeChainNotEqual:
		return "!="
	case TreeChainOther:
		return "op"
	case TreeAnd:
		return "AND"
	case TreeOr:
		return "OR"
	}
	return fmt.Sprintf("TreeKind(%d)", int(k))
}

func classify(op expr.BinaryOp) TreeKind {
	switch op {
	case expr.OpAndAlso:
		return TreeAnd
	case expr.OpOrElse:
		return TreeOr
	case expr.OpEqual:
		return TreeChainEqual
	case expr.OpNotEqual:
		return TreeChainNotEqual
	}
	return TreeChainOther
}

// Operand is either a chain or a nested tree node.
type Operand struct {
	Chain *Chain
	Tree  *TreeNode
}

func (o Operand) String() string {
	switch {
	case o.Tree != nil:
		return o.Tree.String()
	case o.Chain != nil:
		return o.Chain.String()
	}
	return "<empty>"
}

// TreeNode is a binary comparison or boolean connective inside a filter.
type TreeNode struct {
	Kind    TreeKind
	Op      expr.BinaryOp
	Left    Operand
	Right   Operand
	Negated bool
	Parent  *TreeNode
}

// IsTopLevelChainEquality reports whether n is an equality whose ancestors up
// to the filter root are all AND nodes.
func (n *TreeNode) IsTopLevelChainEquality() bool {
	if n.Kind != TreeChainEqual || n.Negated {
		return false
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Kind != TreeAnd || p.Negated {
			return false
		}
	}
	return true
}

// Walk visits n and every nested tree node in pre-order.
func (n *TreeNode) Walk(fn func(*TreeNode)) {
	fn(n)
	if n.Left.Tree != nil {
		n.Left.Tree.Walk(fn)
	}
	if n.Right.Tree != nil {
		n.Right.Tree.Walk(fn)
	}
}

func (n *TreeNode) String() string {
	s := fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
	if n.Negated {
		s = "!" + s
	}
	return s
}
