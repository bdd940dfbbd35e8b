package lecturer

import (
	"errors"
	"fmt"
)

// ParseError marks a fetched page whose structure defeated a parser. The
// pipeline records it against the affected lecturer and moves on; it never
// aborts a batch.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.URL, e.Reason)
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
