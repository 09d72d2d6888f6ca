// Package diagnostics provides structured build error reporting.
// It implements severity levels, source locations, JSON serialization, and
// terminal formatting for errors raised by resolvers, transformers, and bundlers.
package diagnostics

import (
	"fmt"
	"strings"
)

// Severity represents the severity level of a diagnostic
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Severity
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	switch str {
	case "info":
		*s = Info
	case "warning":
		*s = Warning
	case "error":
		*s = Error
	case "fatal":
		*s = Fatal
	default:
		*s = Error
	}
	return nil
}

// SourceLocation represents a location in source code
type SourceLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Length int    `json:"length,omitempty"`
}

// String formats the location as file:line:column
func (l SourceLocation) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is a single build problem reported by a phase or a plugin.
// AssetID and DependencyID carry enough context to report the failure without
// aborting unrelated work that is already scheduled.
type Diagnostic struct {
	Phase        string         `json:"phase"` // "resolve", "transform", "bundle", "package", "config"
	Code         string         `json:"code"`
	Message      string         `json:"message"`
	Severity     Severity       `json:"severity"`
	Location     SourceLocation `json:"location"`
	AssetID      string         `json:"asset_id,omitempty"`
	DependencyID string         `json:"dependency_id,omitempty"`
	Specifier    string         `json:"specifier,omitempty"`
	Hints        []string       `json:"hints,omitempty"`
}

// Error implements the error interface
func (d Diagnostic) Error() string {
	if d.Location.File != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", d.Phase, d.Severity, d.Message, d.Location)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Phase, d.Severity, d.Message)
}

// IsFatal reports whether the diagnostic fails the build on its own
func (d Diagnostic) IsFatal() bool {
	return d.Severity >= Error
}

// List is an ordered collection of diagnostics from one build
type List struct {
	diags []Diagnostic
}

// Add appends a diagnostic to the list
func (l *List) Add(d Diagnostic) {
	l.diags = append(l.diags, d)
}

// Merge appends all diagnostics from another list
func (l *List) Merge(other *List) {
	if other == nil {
		return
	}
	l.diags = append(l.diags, other.diags...)
}

// All returns all collected diagnostics
func (l *List) All() []Diagnostic {
	return l.diags
}

// HasErrors reports whether any diagnostic is Error severity or above
func (l *List) HasErrors() bool {
	for _, d := range l.diags {
		if d.IsFatal() {
			return true
		}
	}
	return false
}

// Len returns the number of collected diagnostics
func (l *List) Len() int {
	return len(l.diags)
}

// Error implements the error interface for a non-empty list
func (l *List) Error() string {
	if len(l.diags) == 0 {
		return "no diagnostics"
	}
	if len(l.diags) == 1 {
		return l.diags[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", l.diags[0].Error(), len(l.diags)-1)
}
