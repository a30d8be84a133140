// Package executor runs compiled plans against a database and materializes
// their result sets.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/batchsql/internal/debug"
	"github.com/satishbabariya/batchsql/query/compiler"
	"github.com/satishbabariya/batchsql/query/result"
	"github.com/satishbabariya/batchsql/query/sqlgen"
)

var ErrDialectMismatch = errors.New("plan was compiled for another dialect")

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Executor executes plans compiled for one dialect
type Executor struct {
	dialect sqlgen.Dialect
}

// New creates an executor for dialect.
func New(dialect sqlgen.Dialect) *Executor {
	return &Executor{dialect: dialect}
}

// Execute runs plan with id as the root key and reads every result set.
func (e *Executor) Execute(ctx context.Context, q Querier, plan *compiler.Plan, id any) (*result.Set, error) {
	set := result.NewSet()
	return set, e.ExecuteInto(ctx, q, plan, id, set)
}

// ExecuteInto is Execute reading into set, so indexes can be declared on it
// beforehand. Rows read before a failure stay in set.
func (e *Executor) ExecuteInto(ctx context.Context, q Querier, plan *compiler.Plan, id any, set *result.Set) error {
	if plan.Dialect != e.dialect.Name() {
		return fmt.Errorf("%w: plan is %s, executor is %s", ErrDialectMismatch, plan.Dialect, e.dialect.Name())
	}
	log := debug.With("execution", uuid.NewString(), "dialect", plan.Dialect)
	log.Debug("executing plan", "tables", len(plan.ReadOrder), "id", id)
	start := time.Now()

	var err error
	if e.dialect.SingleBatch() {
		err = e.executeBatch(ctx, q, plan, id, set)
	} else {
		err = e.executeUnits(ctx, q, plan, id, set)
	}
	if err != nil {
		log.Debug("execution failed", "error", err)
		return err
	}
	log.Debug("execution finished", "elapsed", time.Since(start))
	return nil
}

// ExecuteTx runs plan inside a transaction that is committed when every
// result set was read.
func (e *Executor) ExecuteTx(ctx context.Context, db *sql.DB, plan *compiler.Plan, id any) (*result.Set, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	set, err := e.Execute(ctx, tx, plan, id)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			debug.Warn("rollback failed", "error", rbErr)
		}
		return set, err
	}
	if err := tx.Commit(); err != nil {
		return set, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return set, nil
}

// executeBatch sends the whole batch in one round trip.
func (e *Executor) executeBatch(ctx context.Context, q Querier, plan *compiler.Plan, id any, set *result.Set) error {
	rows, err := q.QueryContext(ctx, plan.SQL, sql.Named("__id", id))
	if err != nil {
		return fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()
	return set.Read(plan.ReadOrder, result.FromRows(rows))
}

// executeUnits runs the batch unit by unit on one connection, as the
// temporary tables only live in the session that created them.
func (e *Executor) executeUnits(ctx context.Context, q Querier, plan *compiler.Plan, id any, set *result.Set) error {
	if db, ok := q.(*sql.DB); ok {
		conn, err := db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire connection: %w", err)
		}
		defer conn.Close()
		q = conn
	}

	r := &unitReader{ctx: ctx, q: q, units: plan.Batch.Units, id: id}
	defer r.Close()
	if !r.advance() && r.err != nil {
		return r.err
	}
	return set.Read(plan.ReadOrder, r)
}
