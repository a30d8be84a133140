package result

import "errors"

var (
	ErrTypeMismatch   = errors.New("column type mismatch")
	ErrNullValue      = errors.New("column value is null")
	ErrIndexAfterRows = errors.New("index must be declared before rows are read")
	ErrDuplicateKey   = errors.New("duplicate value in unique index")
	ErrUnknownColumn  = errors.New("unknown column")
	ErrUnknownTable   = errors.New("unknown result table")
	ErrResultSetCount = errors.New("result set count does not match read order")
)
