package diag

import "fmt"

// Stage identifies which pipeline phase produced the diagnostic.
type Stage string

const (
	StageFrontend   Stage = "frontend"
	StageCompaction Stage = "compaction"
	StageCFG        Stage = "cfg"
	StageDominance  Stage = "dominance"
	StageInterval   Stage = "interval"
	StageDataflow   Stage = "dataflow"
)

// Severity captures how impactful the diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

// Code is a stable identifier for a diagnostic.
type Code string

const (
	// Structural errors
	CodeMalformedGraph       Code = "MALFORMED_GRAPH"
	CodeUnsupportedConstruct Code = "UNSUPPORTED_CONSTRUCT"
	CodeInversion            Code = "INVERSION_ERROR"

	// Front-end errors
	CodeFrontendSyntax      Code = "FRONTEND_SYNTAX"
	CodeFrontendUnsupported Code = "FRONTEND_UNSUPPORTED"
)

// Span represents a location: a source position when the procedure came
// from a file, and the procedure/block the problem was found in.
type Span struct {
	Filename  string
	Line      int
	Column    int
	Procedure string
	Block     string
}

// String returns a human-readable representation of the span.
func (s Span) String() string {
	var pos string
	switch {
	case s.Filename != "" && s.Line > 0:
		pos = fmt.Sprintf("%s:%d:%d", s.Filename, s.Line, s.Column)
	case s.Line > 0:
		pos = fmt.Sprintf("%d:%d", s.Line, s.Column)
	case s.Filename != "":
		pos = s.Filename
	}
	where := s.Procedure
	if s.Block != "" {
		if where != "" {
			where += ":"
		}
		where += s.Block
	}
	switch {
	case pos == "":
		return where
	case where == "":
		return pos
	}
	return pos + " (" + where + ")"
}

// IsValid returns true if the span carries any location information.
func (s Span) IsValid() bool {
	return s.Line > 0 || s.Procedure != "" || s.Block != "" || s.Filename != ""
}

// Diagnostic is a pipeline diagnostic surfaced to end-users.
type Diagnostic struct {
	Stage    Stage
	Severity Severity
	Code     Code
	Message  string
	Span     Span
	Related  []Span   // Optional related locations
	Notes    []string // Additional notes to display
	Help     string   // Help text
}

// WithSpan returns a new diagnostic located at span.
func (d Diagnostic) WithSpan(span Span) Diagnostic {
	d.Span = span
	return d
}

// WithRelated returns a new diagnostic with the given related span added.
func (d Diagnostic) WithRelated(span Span) Diagnostic {
	d.Related = append(d.Related, span)
	return d
}

// WithNote adds a note to the diagnostic.
func (d Diagnostic) WithNote(note string) Diagnostic {
	d.Notes = append(d.Notes, note)
	return d
}

// WithHelp adds help text to the diagnostic.
func (d Diagnostic) WithHelp(help string) Diagnostic {
	d.Help = help
	return d
}

func (d Diagnostic) String() string {
	severity := d.Severity
	if severity == "" {
		severity = SeverityError
	}
	msg := fmt.Sprintf("%s[%s]: %s", severity, d.Code, d.Message)
	if d.Span.IsValid() {
		msg += " at " + d.Span.String()
	}
	return msg
}
