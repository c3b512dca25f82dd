package comments

import "unicode"

// Policy decides whether a message looks like spam. It is pluggable so the
// heuristic can be extended without touching the submission flow.
type Policy interface {
	Suspicious(msg string) bool
}

// ScriptRangePolicy flags messages containing characters from blocked
// Unicode script ranges.
type ScriptRangePolicy struct {
	Ranges []*unicode.RangeTable
}

// DefaultPolicy blocks the script ranges the spam waves have been coming
// from so far.
func DefaultPolicy() *ScriptRangePolicy {
	return &ScriptRangePolicy{
		Ranges: []*unicode.RangeTable{unicode.Cyrillic, unicode.Han},
	}
}

func (p *ScriptRangePolicy) Suspicious(msg string) bool {
	for _, r := range msg {
		if unicode.In(r, p.Ranges...) {
			return true
		}
	}
	return false
}
