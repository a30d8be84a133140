package compiler

import "errors"

var (
	// ErrTranslation wraps every failure of the compile stages. The stage's
	// own sentinel stays reachable through errors.Is.
	ErrTranslation = errors.New("query translation failed")
	ErrPlanVersion = errors.New("unsupported plan version")
)
