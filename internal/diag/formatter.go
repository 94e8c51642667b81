package diag

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Formatter formats diagnostics in a Rust-style format, with a source
// snippet when the span points into a readable file.
type Formatter struct {
	out         io.Writer
	sourceCache map[string][]string // Cache of source lines by filename
}

// NewFormatter creates a new diagnostic formatter writing to out.
// A nil out writes to standard error.
func NewFormatter(out io.Writer) *Formatter {
	if out == nil {
		out = os.Stderr
	}
	return &Formatter{
		out:         out,
		sourceCache: make(map[string][]string),
	}
}

// LoadSource loads the lines of a file (cached).
func (f *Formatter) LoadSource(filename string) ([]string, error) {
	if filename == "" {
		return nil, nil
	}
	if lines, ok := f.sourceCache[filename]; ok {
		return lines, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")
	f.sourceCache[filename] = lines
	return lines, nil
}

// Format formats and prints a diagnostic.
func (f *Formatter) Format(d Diagnostic) {
	f.printHeader(d)
	if d.Span.IsValid() {
		fmt.Fprintf(f.out, "  --> %s\n", d.Span.String())
		f.printSnippet(d.Span)
	}
	f.printHelp(d)
}

// printHeader prints the error header (error[CODE]: message).
func (f *Formatter) printHeader(d Diagnostic) {
	severity := string(d.Severity)
	if severity == "" {
		severity = "error"
	}

	if d.Code != "" {
		fmt.Fprintf(f.out, "%s[%s]: %s\n", severity, d.Code, d.Message)
	} else {
		fmt.Fprintf(f.out, "%s: %s\n", severity, d.Message)
	}
}

// printSnippet prints the offending source line with a caret under the
// column, when the source is available.
func (f *Formatter) printSnippet(span Span) {
	if span.Line <= 0 {
		return
	}
	lines, err := f.LoadSource(span.Filename)
	if err != nil || span.Line > len(lines) {
		return
	}
	lineContent := lines[span.Line-1]
	lineNumWidth := len(fmt.Sprintf("%d", span.Line))
	gutter := strings.Repeat(" ", lineNumWidth)

	fmt.Fprintf(f.out, "   %s |\n", gutter)
	fmt.Fprintf(f.out, " %d | %s\n", span.Line, lineContent)
	if span.Column > 0 {
		fmt.Fprintf(f.out, "   %s | %s^\n", gutter, strings.Repeat(" ", span.Column-1))
	}
	fmt.Fprintf(f.out, "   %s |\n", gutter)
}

// printHelp prints notes, help text and related locations.
func (f *Formatter) printHelp(d Diagnostic) {
	for _, note := range d.Notes {
		fmt.Fprintf(f.out, "  = note: %s\n", note)
	}

	if d.Help != "" {
		fmt.Fprintf(f.out, "help: %s\n", d.Help)
	}

	for _, related := range d.Related {
		if related.IsValid() {
			fmt.Fprintf(f.out, "  = note: related location at %s\n", related.String())
		}
	}
}
