// Package client opens a database for a schema and runs query descriptions
// against it.
package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satishbabariya/batchsql/query/compiler"
	"github.com/satishbabariya/batchsql/query/executor"
	"github.com/satishbabariya/batchsql/query/expr"
	"github.com/satishbabariya/batchsql/query/result"
	"github.com/satishbabariya/batchsql/query/sqlgen"
)

// Client compiles queries for one schema and executes them on one database
type Client struct {
	db          *sql.DB
	dialect     sqlgen.Dialect
	compiler    *compiler.Compiler
	executor    *executor.Executor
	middlewares []Middleware
}

// DriverName maps provider names to database/sql driver names. The driver
// itself has to be registered by the program.
func DriverName(provider string) string {
	switch provider {
	case "sqlserver", "mssql":
		return "sqlserver"
	case "postgresql", "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return ""
	}
}

// Open connects to url with the driver of provider.
func Open(provider, url string, schema compiler.Schema, opts ...compiler.Option) (*Client, error) {
	driverName := DriverName(provider)
	if driverName == "" {
		return nil, fmt.Errorf("%w: %q", sqlgen.ErrUnknownDialect, provider)
	}
	db, err := sql.Open(driverName, url)
	if err != nil {
		return nil, err
	}
	c, err := New(provider, db, schema, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// New creates a client on an open database.
func New(provider string, db *sql.DB, schema compiler.Schema, opts ...compiler.Option) (*Client, error) {
	dialect, err := sqlgen.NewDialect(provider)
	if err != nil {
		return nil, err
	}
	comp, err := compiler.New(schema, append([]compiler.Option{compiler.WithDialect(dialect.Name())}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Client{
		db:       db,
		dialect:  dialect,
		compiler: comp,
		executor: executor.New(dialect),
	}, nil
}

// Use adds a middleware to the chain
func (c *Client) Use(middleware Middleware) {
	c.middlewares = append(c.middlewares, middleware)
}

// Compile compiles tree for the client's dialect.
func (c *Client) Compile(tree *expr.Node) (*compiler.Plan, error) {
	return c.compiler.Compile(tree)
}

// Query compiles tree and runs it with id as the root key.
func (c *Client) Query(ctx context.Context, tree *expr.Node, id any) (*result.Set, error) {
	plan, err := c.Compile(tree)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, plan, id)
}

// Run executes a compiled plan.
func (c *Client) Run(ctx context.Context, plan *compiler.Plan, id any) (*result.Set, error) {
	var set *result.Set
	err := c.executeWithMiddleware(ctx, plan, id, func() error {
		var err error
		set, err = c.executor.Execute(ctx, c.db, plan, id)
		return err
	})
	return set, err
}

// Connect checks the database connection
func (c *Client) Connect(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Dialect returns the dialect queries are compiled for.
func (c *Client) Dialect() sqlgen.Dialect {
	return c.dialect
}
