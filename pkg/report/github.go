package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jingkaihe/skillctl/pkg/lint"
)

// GitHubWriter renders findings as GitHub Actions workflow commands so they
// show up as annotations on pull requests
type GitHubWriter struct{}

// Write implements Writer
func (gw *GitHubWriter) Write(w io.Writer, r *Report) error {
	for _, f := range r.Findings {
		props := []string{"file=" + escapeProperty(f.Path)}
		if f.Line > 0 {
			props = append(props, fmt.Sprintf("line=%d", f.Line))
		}
		props = append(props, "title="+escapeProperty(f.Rule))

		if _, err := fmt.Fprintf(w, "::%s %s::%s\n", annotationLevel(f.Severity), strings.Join(props, ","), escapeData(f.Message)); err != nil {
			return err
		}
	}
	return nil
}

func annotationLevel(s lint.Severity) string {
	switch s {
	case lint.SeverityError:
		return "error"
	case lint.SeverityWarning:
		return "warning"
	default:
		return "notice"
	}
}

func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	return strings.ReplaceAll(s, "\n", "%0A")
}

func escapeProperty(s string) string {
	s = escapeData(s)
	s = strings.ReplaceAll(s, ":", "%3A")
	return strings.ReplaceAll(s, ",", "%2C")
}
