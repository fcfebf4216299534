package txn

import (
	"fmt"
)

// EncodingError indicates a resolved function and parameter set could not be
// encoded into calldata: a missing argument, or a value that cannot be cast
// to its declared ABI type.
type EncodingError struct {
	Function string
	Reason   string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %s", e.Function, e.Reason)
}

func encodingErrorf(function, format string, args ...any) *EncodingError {
	return &EncodingError{Function: function, Reason: fmt.Sprintf(format, args...)}
}
