package types

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Severity is the assessed severity of an enriched record.
// The empty value means the classifier gave no usable answer.
type Severity string

const (
	SeverityUnknown Severity = ""
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
)

// AllSeverities returns all known severities in ascending order
func AllSeverities() []Severity {
	return []Severity{
		SeverityLow,
		SeverityMedium,
		SeverityHigh,
	}
}

// IsValid checks if the severity is one of the known levels
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow,
		SeverityMedium,
		SeverityHigh:
		return true
	default:
		return false
	}
}

// Rank orders severities for comparison. Unknown ranks below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// Max returns the more severe of s and other
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a severity label, ignoring case and surrounding spaces
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.IsValid() {
		return SeverityUnknown, goerr.New("invalid severity", goerr.V("severity", s))
	}
	return sev, nil
}
