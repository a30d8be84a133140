// Package optimizer rewrites a table graph into a minimal rooted tree of
// distinct join paths.
package optimizer

import (
	"slices"

	"github.com/satishbabariya/batchsql/internal/debug"
	"github.com/satishbabariya/batchsql/query/graph"
)

// Stats describes what one Optimize call changed.
type Stats struct {
	Passes  int
	Merged  int
	Lifted  int
	Before  int
	After   int
	Changed bool
}

// Optimizer applies the rewrite rules to a fixed point.
type Optimizer struct {
	maxPasses int
	schema    graph.Schema
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithSchema restricts lifting to back edges that land on the primary key of
// the table they return to. Without a schema every back edge is lifted.
func WithSchema(s graph.Schema) Option {
	return func(o *Optimizer) { o.schema = s }
}

// WithMaxPasses bounds the rewrite loop; zero means no bound.
func WithMaxPasses(n int) Option {
	return func(o *Optimizer) { o.maxPasses = n }
}

// New creates a new graph optimizer
func New(opts ...Option) *Optimizer {
	o := &Optimizer{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize runs the optimizer with default settings.
func Optimize(g *graph.Graph) Stats {
	return New().Optimize(g)
}

// Optimize rewrites g in place until no rule applies. Every rewrite removes
// one connection, so the loop terminates.
//
// Each pass stops at the first change and rescans from the root. Graphs are a
// handful of tables per query; a worklist would pay off only on much larger
// graphs.
func (o *Optimizer) Optimize(g *graph.Graph) Stats {
	done := debug.Stage("optimize")
	stats := Stats{Before: g.ConnectionCount()}

	for o.maxPasses == 0 || stats.Passes < o.maxPasses {
		stats.Passes++
		if o.pass(g, &stats) {
			stats.Changed = true
			continue
		}
		break
	}

	stats.After = g.ConnectionCount()
	done("passes", stats.Passes, "merged", stats.Merged, "lifted", stats.Lifted,
		"connections", stats.After)
	return stats
}

// pass applies the first applicable rewrite and reports whether it did.
func (o *Optimizer) pass(g *graph.Graph, stats *Stats) bool {
	var nodes []*graph.TableNode
	g.Walk(func(n *graph.TableNode, _ *graph.Connection, _ int) { nodes = append(nodes, n) })

	for _, n := range nodes {
		if mergeDuplicate(g, n) {
			stats.Merged++
			return true
		}
		if o.lift(g, n) {
			stats.Lifted++
			return true
		}
	}
	return false
}

// mergeDuplicate folds the target of a connection that repeats an earlier
// connection of the same node into that earlier connection's target.
func mergeDuplicate(g *graph.Graph, n *graph.TableNode) bool {
	for i, keep := range n.Connections {
		for _, dup := range n.Connections[i+1:] {
			if keep.Target == dup.Target || !keep.Equal(dup) {
				continue
			}
			debug.Debug("merge duplicate connection", "table", n.Table, "on", dup.String())
			g.Disconnect(dup)
			g.Fold(dup.Target, keep.Target)
			return true
		}
	}
	return false
}

// lift removes a connection B→C that walks straight back over A→B, and
// re-attaches C's connections to A.
func (o *Optimizer) lift(g *graph.Graph, n *graph.TableNode) bool {
	for _, down := range n.Connections {
		child := g.Node(down.Target)
		for _, back := range child.Connections {
			if back.Target == n.ID || !back.ReverseOf(down) || !o.landsOnKey(back) {
				continue
			}
			debug.Debug("lift connection", "table", child.Table, "on", back.String())
			g.Disconnect(back)
			g.Fold(back.Target, n.ID)
			return true
		}
	}
	return false
}

func (o *Optimizer) landsOnKey(c *graph.Connection) bool {
	if o.schema == nil {
		return true
	}
	pk := o.schema.PKFields(c.TargetTable)
	if len(pk) == 0 || len(pk) != len(c.TargetFields) {
		return false
	}
	for _, f := range pk {
		if !slices.Contains(c.TargetFields, f) {
			return false
		}
	}
	return true
}
