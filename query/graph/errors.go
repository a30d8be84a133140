package graph

import (
	"errors"
	"fmt"
)

var (
	ErrNoCurrentTable     = errors.New("chain item has no current table")
	ErrNoRootTable        = errors.New("query does not start from a table")
	ErrUnresolvedProperty = errors.New("property is not a field of an enclosing projection")
	ErrUnsupportedJoin    = errors.New("unsupported join key shape")
	ErrConnectionNotFound = errors.New("connection not found")
)

// NoConnectionError reports a table node that cannot be reached from the root.
type NoConnectionError struct {
	Table string
}

func (e *NoConnectionError) Error() string {
	return fmt.Sprintf("no connection condition was found for table %s", e.Table)
}

// Unwrap lets errors.Is match ErrConnectionNotFound.
func (e *NoConnectionError) Unwrap() error { return ErrConnectionNotFound }
