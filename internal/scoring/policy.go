package scoring

import (
	"fmt"
	"strings"
)

// LowerIsBetterMode selects the formula used for attributes where a smaller value wins.
type LowerIsBetterMode string

const (
	// LowerIsBetterLegacy rewards (total - share) * factor. This is what every
	// report generated so far was scored with.
	LowerIsBetterLegacy LowerIsBetterMode = "legacy"
	// LowerIsBetterComplement rewards (1 - share) * factor.
	LowerIsBetterComplement LowerIsBetterMode = "complement"
)

// AbsentMode selects how an unavailable metric enters the computation.
type AbsentMode string

const (
	// AbsentSentinel substitutes -1 and runs the normal formula.
	AbsentSentinel AbsentMode = "sentinel"
	// AbsentNeutral gives both sides a zero contribution for the attribute.
	AbsentNeutral AbsentMode = "neutral"
)

// Policy configures the engine's open behaviours
type Policy struct {
	LowerIsBetter LowerIsBetterMode `yaml:"lower_is_better"`
	Absent        AbsentMode        `yaml:"absent"`
}

// DefaultPolicy reproduces historical output
func DefaultPolicy() Policy {
	return Policy{
		LowerIsBetter: LowerIsBetterLegacy,
		Absent:        AbsentSentinel,
	}
}

// ParseLowerIsBetterMode parses a mode name; empty means legacy
func ParseLowerIsBetterMode(s string) (LowerIsBetterMode, error) {
	switch mode := LowerIsBetterMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return LowerIsBetterLegacy, nil
	case LowerIsBetterLegacy, LowerIsBetterComplement:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid lower-is-better mode: %s", s)
	}
}

// ParseAbsentMode parses a mode name; empty means sentinel
func ParseAbsentMode(s string) (AbsentMode, error) {
	switch mode := AbsentMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return AbsentSentinel, nil
	case AbsentSentinel, AbsentNeutral:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid absent mode: %s", s)
	}
}

// Validate checks both modes, filling empty ones with defaults
func (p *Policy) Validate() error {
	lib, err := ParseLowerIsBetterMode(string(p.LowerIsBetter))
	if err != nil {
		return err
	}
	absent, err := ParseAbsentMode(string(p.Absent))
	if err != nil {
		return err
	}
	p.LowerIsBetter = lib
	p.Absent = absent
	return nil
}
