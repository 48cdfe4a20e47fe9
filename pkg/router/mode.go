package router

import (
	"fmt"
	"strings"
)

// Mode selects how far the router is willing to go past the rule-based path.
type Mode string

const (
	// ModeRuleBasedOnly never escalates.
	ModeRuleBasedOnly Mode = "rule_based_only"
	// ModeHybrid escalates low-confidence eligible requests.
	ModeHybrid Mode = "hybrid"
	// ModeLLMPreferred escalates every eligible request the caller allows,
	// falling back to the rule-based result on failure.
	ModeLLMPreferred Mode = "llm_preferred"
	// ModeLLMOnly escalates every eligible request with no fallback.
	ModeLLMOnly Mode = "llm_only"
)

// Modes lists every routing mode.
var Modes = []Mode{ModeRuleBasedOnly, ModeHybrid, ModeLLMPreferred, ModeLLMOnly}

func (m Mode) String() string { return string(m) }

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// ParseMode accepts mode names with dashes or underscores.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	switch m {
	case "":
		return ModeHybrid, nil
	case "rule_based", "rules":
		return ModeRuleBasedOnly, nil
	case "llm":
		return ModeLLMOnly, nil
	}
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown routing mode %q", ErrInvalidMode, s)
	}
	return m, nil
}
