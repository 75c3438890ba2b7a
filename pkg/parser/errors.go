package parser

import (
	"errors"
	"fmt"
)

// ErrNoStructuredSteps is returned when the text holds no well-formed step block.
var ErrNoStructuredSteps = errors.New("no structured steps found")

// ParseError wraps parser failures with the size of the rejected input.
type ParseError struct {
	Op       string // Operation name
	InputLen int    // Length in bytes of the rejected text
	Err      error  // Underlying error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v (input %d bytes)", e.Op, e.Err, e.InputLen)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsParseError checks if an error came from the tagged step parser.
func IsParseError(err error) bool {
	var parseErr *ParseError

	return errors.As(err, &parseErr)
}
