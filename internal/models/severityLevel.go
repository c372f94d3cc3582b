package models

import (
	"fmt"
	"strings"
)

type SeverityLevel int

// All is a filter sentinel and is never assigned to a finding.
const (
	SeverityAll SeverityLevel = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s SeverityLevel) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "all"
	}
}

func (s SeverityLevel) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SeverityLevel) UnmarshalText(text []byte) error {
	level, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}

	*s = level
	return nil
}

// ParseSeverity parses a severity name case-insensitively. "moderate" is accepted as medium
// since the GitHub advisory database reports it that way.
func ParseSeverity(value string) (SeverityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "all", "":
		return SeverityAll, nil
	case "low":
		return SeverityLow, nil
	case "medium", "moderate":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityAll, fmt.Errorf("invalid severity: %s", value)
	}
}

// SeverityFilterFromString never fails: anything unrecognised means no filtering.
func SeverityFilterFromString(value string) SeverityLevel {
	level, err := ParseSeverity(value)
	if err != nil {
		return SeverityAll
	}

	return level
}
