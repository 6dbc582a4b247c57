package lint

import (
	"strings"

	"github.com/pkg/errors"
)

// Severity is the importance of a finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ParseSeverity converts a configuration string into a Severity
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityError:
		return SeverityError, nil
	case SeverityWarning, "warn":
		return SeverityWarning, nil
	case SeverityInfo:
		return SeverityInfo, nil
	}
	return "", errors.Errorf("unknown severity %q, expected error, warning or info", s)
}

// ParseFailOn converts the fail-on setting into a threshold. "never" and the
// empty string yield the empty Severity, which no finding reaches.
func ParseFailOn(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "never", "none":
		return "", nil
	}
	return ParseSeverity(s)
}

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// AtLeast reports whether s is as severe as threshold. An empty threshold is never reached.
func (s Severity) AtLeast(threshold Severity) bool {
	if threshold.rank() == 0 {
		return false
	}
	return s.rank() >= threshold.rank()
}
