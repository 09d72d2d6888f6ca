package diagnostics

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// FormatForTerminal formats a diagnostic for terminal output with colors
func (d Diagnostic) FormatForTerminal() string {
	var sb strings.Builder

	headerColor := severityColor(d.Severity)
	sb.WriteString(fmt.Sprintf("%s: %s\n", headerColor.Sprint(strings.ToUpper(d.Severity.String())), d.Message))

	if d.Location.File != "" {
		arrow := color.New(color.FgCyan).Sprint("-->")
		sb.WriteString(fmt.Sprintf("  %s %s\n", arrow, d.Location))
	}
	if d.Specifier != "" {
		sb.WriteString(fmt.Sprintf("  specifier: %s\n", d.Specifier))
	}
	for _, hint := range d.Hints {
		sb.WriteString(fmt.Sprintf("  %s %s\n", color.New(color.FgYellow).Sprint("hint:"), hint))
	}

	return sb.String()
}

// Print writes all diagnostics in the list to w with terminal formatting
func (l *List) Print(w io.Writer) {
	for _, d := range l.diags {
		fmt.Fprintln(w, d.FormatForTerminal())
	}
}

func severityColor(s Severity) *color.Color {
	switch s {
	case Info:
		return color.New(color.FgCyan, color.Bold)
	case Warning:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}
