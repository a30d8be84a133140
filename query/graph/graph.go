// Package graph builds the table graph of a compiled query: one vertex per
// table occurrence, connected by field-mapped edges from the root table the
// query starts at.
//
// Nodes live in an arena and are addressed by NodeID, so connections and
// provenance refer to handles rather than to each other.
package graph

import (
	"fmt"
	"sort"
	"strings"
)

// NodeID addresses a TableNode inside its Graph.
type NodeID int

// NoNode is the zero handle.
const NoNode NodeID = -1

// TableNode is one occurrence of a physical table in the plan.
type TableNode struct {
	ID          NodeID
	Table       string
	Columns     []string
	Connections []*Connection

	// Removed is set when the optimizer folds the node into another one.
	Removed bool
}

// Use records columns as referenced, keeping Columns sorted and unique.
func (n *TableNode) Use(columns ...string) {
	for _, c := range columns {
		i := sort.SearchStrings(n.Columns, c)
		if i < len(n.Columns) && n.Columns[i] == c {
			continue
		}
		n.Columns = append(n.Columns, "")
		copy(n.Columns[i+1:], n.Columns[i:])
		n.Columns[i] = c
	}
}

// HasColumn reports whether column is referenced.
func (n *TableNode) HasColumn(column string) bool {
	i := sort.SearchStrings(n.Columns, column)
	return i < len(n.Columns) && n.Columns[i] == column
}

// Connection is a directed edge between two table nodes. SourceFields[i]
// maps to TargetFields[i]; pairs are kept sorted by source field.
type Connection struct {
	Source       NodeID
	SourceTable  string
	SourceFields []string
	Target       NodeID
	TargetTable  string
	TargetFields []string
}

// AddField extends the mapping with one more field pair.
func (c *Connection) AddField(source, target string) {
	for i := range c.SourceFields {
		if c.SourceFields[i] == source && c.TargetFields[i] == target {
			return
		}
	}
	i := sort.Search(len(c.SourceFields), func(i int) bool {
		if c.SourceFields[i] != source {
			return c.SourceFields[i] > source
		}
		return c.TargetFields[i] > target
	})
	c.SourceFields = append(c.SourceFields, "")
	c.TargetFields = append(c.TargetFields, "")
	copy(c.SourceFields[i+1:], c.SourceFields[i:])
	copy(c.TargetFields[i+1:], c.TargetFields[i:])
	c.SourceFields[i] = source
	c.TargetFields[i] = target
}

// IsSame reports whether both connections join the same tables on the same
// fields, in the same or in reversed orientation.
func (c *Connection) IsSame(o *Connection) bool {
	return c.Equal(o) || c.ReverseOf(o)
}

// Equal reports whether both connections join the same tables on the same
// fields in the same orientation.
func (c *Connection) Equal(o *Connection) bool {
	return c.SourceTable == o.SourceTable && c.TargetTable == o.TargetTable &&
		equalPairs(c.pairs(false), o.pairs(false))
}

// ReverseOf reports whether c walks o backwards.
func (c *Connection) ReverseOf(o *Connection) bool {
	return c.SourceTable == o.TargetTable && c.TargetTable == o.SourceTable &&
		equalPairs(c.pairs(false), o.pairs(true))
}

func (c *Connection) pairs(reversed bool) [][2]string {
	out := make([][2]string, len(c.SourceFields))
	for i := range c.SourceFields {
		if reversed {
			out[i] = [2]string{c.TargetFields[i], c.SourceFields[i]}
		} else {
			out[i] = [2]string{c.SourceFields[i], c.TargetFields[i]}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

func equalPairs(a, b [][2]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (c *Connection) String() string {
	conds := make([]string, len(c.SourceFields))
	for i := range c.SourceFields {
		conds[i] = fmt.Sprintf("%s.%s=%s.%s", c.SourceTable, c.SourceFields[i], c.TargetTable, c.TargetFields[i])
	}
	return strings.Join(conds, " AND ")
}

// Graph is a rooted directed graph of table nodes.
type Graph struct {
	Nodes []*TableNode
	Root  NodeID
}

// New returns an empty graph.
func New() *Graph { return &Graph{Root: NoNode} }

// Add allocates a node for table.
func (g *Graph) Add(table string) NodeID {
	id := NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, &TableNode{ID: id, Table: table})
	return id
}

// Node returns the node for id.
func (g *Graph) Node(id NodeID) *TableNode { return g.Nodes[id] }

// Between returns the connection linking a and b in either direction.
func (g *Graph) Between(a, b NodeID) (*Connection, bool) {
	for _, c := range g.Nodes[a].Connections {
		if c.Target == b {
			return c, true
		}
	}
	for _, c := range g.Nodes[b].Connections {
		if c.Target == a {
			return c, true
		}
	}
	return nil, false
}

// Connect adds a connection from src to dst, or extends the existing one
// between the two nodes. Key fields are recorded as used on both ends.
func (g *Graph) Connect(src NodeID, srcFields []string, dst NodeID, dstFields []string) *Connection {
	g.Nodes[src].Use(srcFields...)
	g.Nodes[dst].Use(dstFields...)

	if c, ok := g.Between(src, dst); ok {
		for i := range srcFields {
			if c.Source == src {
				c.AddField(srcFields[i], dstFields[i])
			} else {
				c.AddField(dstFields[i], srcFields[i])
			}
		}
		return c
	}

	c := &Connection{
		Source:      src,
		SourceTable: g.Nodes[src].Table,
		Target:      dst,
		TargetTable: g.Nodes[dst].Table,
	}
	for i := range srcFields {
		c.AddField(srcFields[i], dstFields[i])
	}
	g.Nodes[src].Connections = append(g.Nodes[src].Connections, c)
	return c
}

// Disconnect removes connection c from its source node.
func (g *Graph) Disconnect(c *Connection) {
	n := g.Nodes[c.Source]
	for i, cc := range n.Connections {
		if cc == c {
			n.Connections = append(n.Connections[:i], n.Connections[i+1:]...)
			return
		}
	}
}

// Fold merges node from into node into: from's columns are unioned onto into,
// its outgoing connections are re-parented and from is marked Removed.
func (g *Graph) Fold(from, into NodeID) {
	src, dst := g.Nodes[from], g.Nodes[into]
	dst.Use(src.Columns...)
	for _, c := range src.Connections {
		c.Source = into
		c.SourceTable = dst.Table
		dst.Connections = append(dst.Connections, c)
	}
	src.Connections = nil
	src.Removed = true
}

// Walk visits every node reachable from the root in pre-order, passing the
// connection it was reached through (nil for the root) and its depth.
func (g *Graph) Walk(fn func(n *TableNode, via *Connection, depth int)) {
	if g.Root == NoNode {
		return
	}
	seen := make(map[NodeID]bool)
	var visit func(id NodeID, via *Connection, depth int)
	visit = func(id NodeID, via *Connection, depth int) {
		if seen[id] {
			return
		}
		seen[id] = true
		n := g.Nodes[id]
		fn(n, via, depth)
		for _, c := range n.Connections {
			visit(c.Target, c, depth+1)
		}
	}
	visit(g.Root, nil, 0)
}

// Reachable returns the set of nodes reachable from the root.
func (g *Graph) Reachable() map[NodeID]bool {
	out := make(map[NodeID]bool)
	g.Walk(func(n *TableNode, _ *Connection, _ int) { out[n.ID] = true })
	return out
}

// ConnectionCount counts connections among reachable nodes.
func (g *Graph) ConnectionCount() int {
	count := 0
	g.Walk(func(n *TableNode, _ *Connection, _ int) { count += len(n.Connections) })
	return count
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := &Graph{Root: g.Root, Nodes: make([]*TableNode, len(g.Nodes))}
	for i, n := range g.Nodes {
		cp := &TableNode{
			ID:      n.ID,
			Table:   n.Table,
			Columns: append([]string(nil), n.Columns...),
			Removed: n.Removed,
		}
		for _, c := range n.Connections {
			cc := *c
			cc.SourceFields = append([]string(nil), c.SourceFields...)
			cc.TargetFields = append([]string(nil), c.TargetFields...)
			cp.Connections = append(cp.Connections, &cc)
		}
		out.Nodes[i] = cp
	}
	return out
}

// String renders the reachable graph as an indented tree.
func (g *Graph) String() string {
	var b strings.Builder
	g.Walk(func(n *TableNode, via *Connection, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.Table)
		if len(n.Columns) > 0 {
			b.WriteString(" {" + strings.Join(n.Columns, ", ") + "}")
		}
		if via != nil {
			b.WriteString(" ON " + via.String())
		}
		b.WriteByte('\n')
	})
	return b.String()
}
