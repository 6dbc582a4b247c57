package lint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Finding is one rule violation at a file and line
type Finding struct {
	Rule     string   `json:"rule" jsonschema:"description=ID of the rule that produced the finding"`
	Severity Severity `json:"severity" jsonschema:"enum=error,enum=warning,enum=info"`
	Path     string   `json:"path" jsonschema:"description=Slash path relative to the corpus root"`
	Line     int      `json:"line,omitempty" jsonschema:"description=1-based line, omitted for whole-file findings"`
	Message  string   `json:"message"`
	Skill    string   `json:"skill,omitempty" jsonschema:"description=Skill directory name"`
	Tree     string   `json:"tree,omitempty"`
}

// Fingerprint identifies a finding independently of its line, so baselines
// survive edits that only shift content up or down.
func (f Finding) Fingerprint() string {
	sum := sha256.Sum256([]byte(f.Rule + "\x00" + f.Path + "\x00" + f.Message))
	return hex.EncodeToString(sum[:])
}

// Location renders path:line, or just path when the line is unknown
func (f Finding) Location() string {
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d", f.Path, f.Line)
	}
	return f.Path
}

// SortFindings orders findings by path, line and rule
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
}

// Counts tallies findings per severity
type Counts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

// Count tallies findings per severity
func Count(findings []Finding) Counts {
	var c Counts
	for _, f := range findings {
		switch f.Severity {
		case SeverityError:
			c.Errors++
		case SeverityWarning:
			c.Warnings++
		case SeverityInfo:
			c.Infos++
		}
	}
	return c
}
