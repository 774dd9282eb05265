package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by the store and config layers.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// LogicError reports a broken internal invariant (a defect in the parser,
// not bad input data). It is the only error the entity string parser lets
// escape to callers.
type LogicError struct {
	Input  string
	Detail string
}

func (e *LogicError) Error() string {
	return fmt.Sprintf("logic error: %s (input %q)", e.Detail, e.Input)
}

// NewLogicError builds a LogicError with a formatted detail message.
func NewLogicError(input, format string, args ...any) *LogicError {
	return &LogicError{Input: input, Detail: fmt.Sprintf(format, args...)}
}

// IsLogicError reports whether err (or anything it wraps) is a LogicError.
func IsLogicError(err error) bool {
	var le *LogicError
	return errors.As(err, &le)
}
