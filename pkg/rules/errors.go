package rules

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyRule           = errors.New("empty rule")
	ErrUnknownType         = errors.New("condition/instruction type not recognised")
	ErrBadOperator         = errors.New("invalid operator")
	ErrBadValue            = errors.New("invalid value")
	ErrMissingArgument     = errors.New("missing argument")
	ErrUnterminatedBracket = errors.New("unterminated bracket")
	ErrEmptyBracket        = errors.New("empty bracket")
)

// BuildError reports a rule that could not be constructed.
type BuildError struct {
	Type  string // rule type as written
	Token string // offending token
	Err   error
}

func (e *BuildError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("%s: token %q: %v", e.Type, e.Token, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
