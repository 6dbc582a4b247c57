package lint

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

const baselineVersion = 1

// BaselineEntry records one accepted finding
type BaselineEntry struct {
	Fingerprint string `json:"fingerprint"`
	Rule        string `json:"rule"`
	Path        string `json:"path"`
	Message     string `json:"message"`
}

// Baseline is a set of accepted findings suppressed on later runs
type Baseline struct {
	Version int             `json:"version"`
	Entries []BaselineEntry `json:"entries"`
}

// LoadBaseline reads a baseline file. A missing file yields an empty baseline.
func LoadBaseline(path string) (*Baseline, error) {
	data, err := lockedfile.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Baseline{Version: baselineVersion}, nil
		}
		return nil, errors.Wrapf(err, "failed to read baseline %s", path)
	}

	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrapf(err, "failed to parse baseline %s", path)
	}
	if b.Version != baselineVersion {
		return nil, errors.Errorf("unsupported baseline version %d in %s", b.Version, path)
	}
	return &b, nil
}

// Len returns the number of recorded entries
func (b *Baseline) Len() int {
	return len(b.Entries)
}

// Filter drops findings recorded in the baseline. Each entry suppresses at
// most one finding, so a new duplicate of an accepted finding is still reported.
func (b *Baseline) Filter(findings []Finding) ([]Finding, int) {
	if b == nil || len(b.Entries) == 0 {
		return findings, 0
	}

	remaining := make(map[string]int, len(b.Entries))
	for _, e := range b.Entries {
		remaining[e.Fingerprint]++
	}

	kept := make([]Finding, 0, len(findings))
	suppressed := 0
	for _, f := range findings {
		fp := f.Fingerprint()
		if remaining[fp] > 0 {
			remaining[fp]--
			suppressed++
			continue
		}
		kept = append(kept, f)
	}
	return kept, suppressed
}

// NewBaseline records findings as accepted
func NewBaseline(findings []Finding) *Baseline {
	b := &Baseline{Version: baselineVersion, Entries: make([]BaselineEntry, 0, len(findings))}
	for _, f := range findings {
		b.Entries = append(b.Entries, BaselineEntry{
			Fingerprint: f.Fingerprint(),
			Rule:        f.Rule,
			Path:        f.Path,
			Message:     f.Message,
		})
	}
	sort.SliceStable(b.Entries, func(i, j int) bool {
		a, c := b.Entries[i], b.Entries[j]
		if a.Path != c.Path {
			return a.Path < c.Path
		}
		if a.Rule != c.Rule {
			return a.Rule < c.Rule
		}
		return a.Message < c.Message
	})
	return b
}

// WriteBaseline replaces the baseline file with the given findings
func WriteBaseline(path string, findings []Finding) error {
	data, err := json.MarshalIndent(NewBaseline(findings), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode baseline")
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create baseline directory")
		}
	}
	if err := lockedfile.Write(path, bytes.NewReader(data), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write baseline %s", path)
	}
	return nil
}
