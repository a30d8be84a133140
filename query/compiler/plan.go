package compiler

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/satishbabariya/batchsql/query/graph"
	"github.com/satishbabariya/batchsql/query/optimizer"
	"github.com/satishbabariya/batchsql/query/sqlgen"
)

const planVersion = 1

// Plan is a compiled query. It can be encoded once and executed any number
// of times.
type Plan struct {
	Version   int           `msgpack:"version"`
	Dialect   string        `msgpack:"dialect"`
	SQL       string        `msgpack:"sql"`
	ReadOrder []string      `msgpack:"read_order"`
	Batch     *sqlgen.Batch `msgpack:"batch"`
	// Graph is the rendered optimized table graph.
	Graph string `msgpack:"graph"`

	graph *graph.Graph
	stats optimizer.Stats
}

// TableGraph returns the optimized graph the plan was emitted from. It is
// nil for decoded plans.
func (p *Plan) TableGraph() *graph.Graph { return p.graph }

// Stats returns the optimizer statistics of the compile run.
func (p *Plan) Stats() optimizer.Stats { return p.stats }

// Encode serializes the plan with msgpack.
func (p *Plan) Encode() ([]byte, error) {
	return msgpack.Marshal(p)
}

// DecodePlan reverses Plan.Encode.
func DecodePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if p.Version != planVersion {
		return nil, fmt.Errorf("%w: %d", ErrPlanVersion, p.Version)
	}
	if p.Batch == nil {
		return nil, fmt.Errorf("decode plan: missing batch")
	}
	return &p, nil
}
