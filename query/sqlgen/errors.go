package sqlgen

import "errors"

var (
	ErrUnknownDialect        = errors.New("unknown SQL dialect")
	ErrEmptyGraph            = errors.New("table graph has no root")
	ErrRootKey               = errors.New("root table must have a single-column primary key")
	ErrJoinWithoutPrimaryKey = errors.New("at least one part of join must point to PK")
	ErrMissingType           = errors.New("no SQL type for column")
)
