// Package compiler compiles a query description into a statement batch that
// loads every table the query touches in one round trip.
package compiler

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/batchsql/internal/debug"
	"github.com/satishbabariya/batchsql/query/cache"
	"github.com/satishbabariya/batchsql/query/chain"
	"github.com/satishbabariya/batchsql/query/expr"
	"github.com/satishbabariya/batchsql/query/graph"
	"github.com/satishbabariya/batchsql/query/optimizer"
	"github.com/satishbabariya/batchsql/query/sqlgen"
)

// Schema is the mapping metadata the compile stages consult.
type Schema interface {
	chain.Mapping
	sqlgen.Schema
	Provider() string
}

// Compiler compiles query descriptions against one schema
type Compiler struct {
	schema    Schema
	provider  string
	opts      sqlgen.Options
	maxPasses int
	plans     *cache.LRU[*Plan]
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithDialect targets provider instead of the schema's datasource provider.
func WithDialect(provider string) Option {
	return func(c *Compiler) { c.provider = provider }
}

// WithFastPathKeys sets the owner-id columns filtered by the root key
// directly.
func WithFastPathKeys(keys ...string) Option {
	return func(c *Compiler) { c.opts.FastPathKeys = append(c.opts.FastPathKeys, keys...) }
}

// WithMaxPasses bounds the optimizer.
func WithMaxPasses(n int) Option {
	return func(c *Compiler) { c.maxPasses = n }
}

// WithCache keeps up to size compiled plans keyed by query text.
func WithCache(size int) Option {
	return func(c *Compiler) { c.plans = cache.New[*Plan](size) }
}

// New creates a compiler for schema.
func New(schema Schema, opts ...Option) (*Compiler, error) {
	c := &Compiler{schema: schema, provider: schema.Provider()}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := sqlgen.NewDialect(c.provider); err != nil {
		return nil, err
	}
	return c, nil
}

// Compile runs the four compile stages over tree. With a cache, a plan
// compiled before for the same query is returned as is.
func (c *Compiler) Compile(tree *expr.Node) (*Plan, error) {
	if c.plans == nil {
		return c.compile(tree)
	}
	key := cache.Key(c.provider, strings.Join(c.opts.FastPathKeys, ","), tree.String())
	if plan, ok := c.plans.Get(key); ok {
		debug.Debug("plan cache hit", "key", key[:12])
		return plan, nil
	}
	plan, err := c.compile(tree)
	if err != nil {
		return nil, err
	}
	c.plans.Set(key, plan)
	return plan, nil
}

// CacheStats returns plan cache statistics, zero without a cache.
func (c *Compiler) CacheStats() cache.Stats {
	if c.plans == nil {
		return cache.Stats{}
	}
	return c.plans.Stats()
}

// Reset drops every cached plan.
func (c *Compiler) Reset() {
	if c.plans != nil {
		c.plans.Clear()
	}
}

func (c *Compiler) compile(tree *expr.Node) (*Plan, error) {
	done := debug.Stage("compile", "query", tree.String())

	ch, err := chain.Build(chain.NewContext(c.schema), tree)
	if err != nil {
		return nil, translation(err)
	}
	debug.Debug("chain built", "chain", ch.String())

	g, err := graph.Build(c.schema, ch)
	if err != nil {
		return nil, translation(err)
	}

	opts := []optimizer.Option{optimizer.WithSchema(c.schema)}
	if c.maxPasses > 0 {
		opts = append(opts, optimizer.WithMaxPasses(c.maxPasses))
	}
	stats := optimizer.New(opts...).Optimize(g)

	batch, err := sqlgen.NewEmitter(c.schema, sqlgen.MustDialect(c.provider), c.opts).Emit(g)
	if err != nil {
		return nil, translation(err)
	}

	plan := &Plan{
		Version:   planVersion,
		Dialect:   batch.Dialect,
		SQL:       batch.SQL(),
		ReadOrder: batch.ReadOrder,
		Batch:     batch,
		Graph:     g.String(),
		graph:     g,
		stats:     stats,
	}
	done("tables", len(batch.ReadOrder), "connections", stats.After)
	return plan, nil
}

func translation(err error) error {
	return fmt.Errorf("%w: %w", ErrTranslation, err)
}
