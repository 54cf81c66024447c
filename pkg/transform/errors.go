package transform

import "fmt"

// ParseError reports malformed user input: a numeric triple or a matrix
// that could not be decoded.
type ParseError struct {
	msg string
}

func (e *ParseError) Error() string { return e.msg }

// NewParseError constructs a ParseError from a format string.
func NewParseError(format string, values ...interface{}) *ParseError {
	return &ParseError{msg: fmt.Sprintf(format, values...)}
}

// ValidationError reports input that parsed but violates a constraint,
// such as an origin coordinate outside the box.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// NewValidationError constructs a ValidationError from a format string.
func NewValidationError(format string, values ...interface{}) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, values...)}
}
