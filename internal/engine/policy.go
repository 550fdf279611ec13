package engine

import (
	"strconv"
	"strings"
)

// GateThreshold is the minimum confidence (percent) for an UNSAFE verdict to
// become an actionable threat.
const GateThreshold = 90.0

// Gate decides which verdicts escalate into threats.
type Gate struct {
	Threshold float64
}

// DefaultGate returns the 90% gate.
func DefaultGate() Gate {
	return Gate{Threshold: GateThreshold}
}

// Allows reports whether v is an UNSAFE verdict that clears the threshold.
func (g Gate) Allows(v Verdict) bool {
	if v.Status != StatusUnsafe {
		return false
	}
	return g.AllowsConfidence(v.ConfidenceString())
}

// AllowsConfidence applies the threshold to a rendered confidence string.
// Unparseable values fail open and are treated as high risk.
func (g Gate) AllowsConfidence(s string) bool {
	conf, ok := ParseConfidence(s)
	if !ok {
		return true
	}
	return conf >= g.Threshold
}

// Actionable applies the default 90% gate.
func Actionable(v Verdict) bool {
	return DefaultGate().Allows(v)
}

// ParseConfidence extracts the leading percentage from strings such as
// "97.3%" or "100% (Hash)".
func ParseConfidence(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	num, _, found := strings.Cut(s, "%")
	if !found {
		num = s
	}
	conf, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, false
	}
	return conf, true
}
