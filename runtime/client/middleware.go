package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/satishbabariya/batchsql/query/compiler"
)

// QueryEvent describes one plan execution
type QueryEvent struct {
	SQL      string
	Tables   []string
	ID       any
	Duration time.Duration
	Error    error
	Start    time.Time
	End      time.Time
}

// Middleware intercepts plan executions. It must call next exactly once to
// run the plan.
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

func (c *Client) executeWithMiddleware(ctx context.Context, plan *compiler.Plan, id any, exec func() error) error {
	if len(c.middlewares) == 0 {
		return exec()
	}

	event := &QueryEvent{
		SQL:    plan.SQL,
		Tables: plan.ReadOrder,
		ID:     id,
		Start:  time.Now(),
	}

	var next func() error
	index := 0
	next = func() error {
		if index >= len(c.middlewares) {
			err := exec()
			event.End = time.Now()
			event.Duration = event.End.Sub(event.Start)
			event.Error = err
			return err
		}
		middleware := c.middlewares[index]
		index++
		return middleware(ctx, event, next)
	}
	return next()
}

// LoggingMiddleware logs every execution to logger at debug level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		logger.DebugContext(ctx, "executing plan", "tables", event.Tables, "id", event.ID)
		err := next()
		if err != nil {
			logger.DebugContext(ctx, "plan failed", "error", err)
		} else {
			logger.DebugContext(ctx, "plan completed", "duration", event.Duration)
		}
		return err
	}
}

// TimingMiddleware reports the duration of every execution.
func TimingMiddleware(onTiming func(tables []string, duration time.Duration)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event.Tables, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware reports failed executions.
func ErrorMiddleware(onError func(sql string, err error)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event.SQL, err)
		}
		return err
	}
}
