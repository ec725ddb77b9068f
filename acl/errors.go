package acl

import (
	"errors"
	"fmt"
	"strings"
)

// ErrGeoNotSupported is returned by NilGeoLoader for every load request.
var ErrGeoNotSupported = errors.New("geo database not supported")

// ParseError is a malformed rule or token, with its 1-based source line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}

// ParseErrors aggregates every line error of one parse pass, so a bad rule
// file reports all of its problems at once.
type ParseErrors []*ParseError

func (e ParseErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, item := range e {
		msgs = append(msgs, item.Error())
	}
	return strings.Join(msgs, "; ")
}

// CompileError is a rule that parsed but cannot be compiled: unknown
// outbound, invalid address (including a geo loader failure), bad
// protocol/port clause, or bad hijack address.
type CompileError struct {
	Line    int
	Message string
	Err     error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compile error at line %d: %s: %v", e.Line, e.Message, e.Err)
	}
	return fmt.Sprintf("compile error at line %d: %s", e.Line, e.Message)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}
