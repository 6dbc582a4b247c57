// Package report renders lint results as text, JSON or GitHub Actions
// workflow annotations.
package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/jingkaihe/skillctl/pkg/lint"
	"github.com/pkg/errors"
)

// Report is the serialisable outcome of a lint run
type Report struct {
	Root        string         `json:"root" jsonschema:"description=Absolute corpus root"`
	GeneratedAt time.Time      `json:"generatedAt"`
	SkillCount  int            `json:"skillCount"`
	Rules       []string       `json:"rules" jsonschema:"description=IDs of the rules that ran"`
	Findings    []lint.Finding `json:"findings"`
	Suppressed  int            `json:"suppressed" jsonschema:"description=Findings hidden by the baseline"`
	Summary     lint.Counts    `json:"summary"`
}

// New builds a report from a lint result whose findings have already been
// filtered through the baseline
func New(root string, result *lint.Result, suppressed int) *Report {
	findings := result.Findings
	if findings == nil {
		findings = []lint.Finding{}
	}
	return &Report{
		Root:        root,
		GeneratedAt: time.Now().UTC(),
		SkillCount:  result.SkillCount,
		Rules:       result.Rules,
		Findings:    findings,
		Suppressed:  suppressed,
		Summary:     lint.Count(findings),
	}
}

// Failed reports whether any finding reaches the failOn severity
func (r *Report) Failed(failOn lint.Severity) bool {
	for _, f := range r.Findings {
		if f.Severity.AtLeast(failOn) {
			return true
		}
	}
	return false
}

// Writer renders a report
type Writer interface {
	Write(w io.Writer, r *Report) error
}

// NewWriter returns the writer for a format name
func NewWriter(format string) (Writer, error) {
	switch format {
	case "text", "":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{Indent: true}, nil
	case "github":
		return &GitHubWriter{}, nil
	}
	return nil, errors.Errorf("unknown report format %q, expected text, json or github", format)
}

// JSONWriter renders the report as a single JSON document
type JSONWriter struct {
	Indent bool
}

// Write implements Writer
func (jw *JSONWriter) Write(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	if jw.Indent {
		enc.SetIndent("", "  ")
	}
	return errors.Wrap(enc.Encode(r), "failed to encode report")
}

// Schema returns the JSON Schema of the JSON report format
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(&Report{})
	schema.Title = "skillctl lint report"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode report schema")
	}
	return data, nil
}
