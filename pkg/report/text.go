package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/jingkaihe/skillctl/pkg/lint"
)

// TextWriter renders findings grouped by file, followed by a summary box
type TextWriter struct{}

var summaryStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	Padding(0, 1)

// Write implements Writer
func (tw *TextWriter) Write(w io.Writer, r *Report) error {
	pathColor := color.New(color.Bold, color.Underline)
	ruleColor := color.New(color.Faint)

	currentPath := ""
	for _, f := range r.Findings {
		if f.Path != currentPath {
			if currentPath != "" {
				fmt.Fprintln(w)
			}
			pathColor.Fprintln(w, f.Path)
			currentPath = f.Path
		}

		line := "-"
		if f.Line > 0 {
			line = fmt.Sprintf("%d", f.Line)
		}
		fmt.Fprintf(w, "  %5s  %s  %s  %s\n",
			line,
			severityColor(f.Severity).Sprintf("%-7s", f.Severity),
			f.Message,
			ruleColor.Sprint(f.Rule))
	}
	if len(r.Findings) > 0 {
		fmt.Fprintln(w)
	}

	_, err := fmt.Fprintln(w, summaryStyle.Render(summaryLine(r)))
	return err
}

func summaryLine(r *Report) string {
	parts := []string{
		fmt.Sprintf("%s checked", plural(r.SkillCount, "skill", "skills")),
		plural(r.Summary.Errors, "error", "errors"),
		plural(r.Summary.Warnings, "warning", "warnings"),
		fmt.Sprintf("%d info", r.Summary.Infos),
	}
	line := strings.Join(parts, " · ")
	if r.Suppressed > 0 {
		line += fmt.Sprintf(" (%d suppressed by baseline)", r.Suppressed)
	}
	return line
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

func severityColor(s lint.Severity) *color.Color {
	switch s {
	case lint.SeverityError:
		return color.New(color.FgRed, color.Bold)
	case lint.SeverityWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}
