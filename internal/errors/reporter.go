package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter renders diagnostics with source context for the terminal.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter creates a reporter for one source file.
func NewReporter(filename, source string) *Reporter {
	return &Reporter{
		filename: filename,
		lines:    strings.Split(source, "\n"),
	}
}

// Format renders one diagnostic with Rust-like styling: a coded header, the
// offending line, and a caret marker, plus any help text and notes.
func (r *Reporter) Format(err CompilerError) string {
	var out strings.Builder

	levelColor := r.levelColor(err.Level)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	out.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(err.Level)), err.Code, err.Message))

	if err.Position.Line <= 0 || err.Position.Line > len(r.lines) {
		return out.String()
	}

	width := len(fmt.Sprintf("%d", err.Position.Line))
	indent := strings.Repeat(" ", width)

	out.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n",
		indent, dim("-->"), r.filename, err.Position.Line, err.Position.Column))
	out.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	lineContent := r.lines[err.Position.Line-1]
	out.WriteString(fmt.Sprintf("%s %s %s\n",
		bold(fmt.Sprintf("%*d", width, err.Position.Line)), dim("│"), lineContent))

	span := err.Length
	if span < 1 {
		span = 1
	}
	marker := strings.Repeat(" ", maxInt(err.Position.Column-1, 0)) + levelColor(strings.Repeat("^", span))
	out.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), marker))

	if err.HelpText != "" {
		help := color.New(color.FgCyan).SprintFunc()
		out.WriteString(fmt.Sprintf("%s %s: %s\n", indent, help("help"), err.HelpText))
	}
	for _, note := range err.Notes {
		out.WriteString(fmt.Sprintf("%s %s: %s\n", indent, dim("note"), note))
	}
	return out.String()
}

// FormatAll renders a batch of diagnostics separated by blank lines.
func (r *Reporter) FormatAll(errs []CompilerError) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = r.Format(err)
	}
	return strings.Join(parts, "\n")
}

func (r *Reporter) levelColor(level ErrorLevel) func(a ...interface{}) string {
	switch level {
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case Note:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
