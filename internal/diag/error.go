package diag

import (
	"errors"
	"fmt"
)

// Error carries a Diagnostic through Go error returns. Two errors match
// under errors.Is when their codes are equal, so callers test kinds with the
// sentinels below.
type Error struct {
	Diagnostic
	Err error // optional underlying cause
}

var (
	// ErrMalformedGraph is returned when the CFG violates a structural
	// precondition (single source, acyclicity, reachability).
	ErrMalformedGraph = &Error{Diagnostic: Diagnostic{Code: CodeMalformedGraph}}

	// ErrUnsupported is returned for constructs outside the handled
	// interval shapes.
	ErrUnsupported = &Error{Diagnostic: Diagnostic{Code: CodeUnsupportedConstruct}}

	// ErrInversion is returned when a condition cannot be inverted.
	ErrInversion = &Error{Diagnostic: Diagnostic{Code: CodeInversion}}
)

// Errorf builds an error-severity diagnostic error.
func Errorf(stage Stage, code Code, format string, args ...interface{}) *Error {
	return &Error{Diagnostic: Diagnostic{
		Stage:    stage,
		Severity: SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}}
}

func (e *Error) Error() string {
	msg := e.Diagnostic.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a diagnostic error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// At returns e located at span.
func (e *Error) At(span Span) *Error {
	e.Span = span
	return e
}

// Wrap attaches an underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// WithNote adds a note and returns e.
func (e *Error) WithNote(note string) *Error {
	e.Notes = append(e.Notes, note)
	return e
}

// WithHelp sets the help text and returns e.
func (e *Error) WithHelp(help string) *Error {
	e.Help = help
	return e
}

// InProcedure fills in the procedure name of err's span when err is a
// diagnostic error without one. Other errors are returned unchanged.
func InProcedure(err error, name string) error {
	var de *Error
	if errors.As(err, &de) && de.Span.Procedure == "" {
		de.Span.Procedure = name
	}
	return err
}

// From extracts the diagnostic carried by err. Plain errors become a
// generic error diagnostic.
func From(err error) Diagnostic {
	var de *Error
	if errors.As(err, &de) {
		d := de.Diagnostic
		if de.Err != nil {
			d.Notes = append(append([]string(nil), d.Notes...), de.Err.Error())
		}
		return d
	}
	return Diagnostic{Severity: SeverityError, Message: err.Error()}
}
