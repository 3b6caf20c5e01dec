// Package moderation evaluates chat messages against the channel policy.
// The evaluator is pure: it returns the action to take and leaves the
// delete/timeout/penalty side effects to the caller, which keeps the rules
// independently testable.
package moderation

import "strings"

// Action is the outcome of evaluating one message.
type Action int

const (
	None Action = iota
	DeleteAndTimeout
)

// Policy is a configuration snapshot. It is read-only during a dispatch
// decision and may be hot-reloaded between events.
type Policy struct {
	BannedWords     []string
	LinkFiltering   bool
	CapsFiltering   bool
	TimeoutDuration int // seconds
}

// DefaultPolicy mirrors the out-of-the-box moderation settings.
func DefaultPolicy() Policy {
	return Policy{LinkFiltering: true, CapsFiltering: true, TimeoutDuration: 60}
}

// Evaluate runs the policy checks in order; first match wins.
func Evaluate(text string, p Policy) Action {
	lower := strings.ToLower(text)

	for _, word := range p.BannedWords {
		if word == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(word)) {
			return DeleteAndTimeout
		}
	}

	if p.LinkFiltering {
		if strings.Contains(text, "http://") || strings.Contains(text, "https://") || strings.Contains(text, "www.") {
			return DeleteAndTimeout
		}
	}

	if p.CapsFiltering && len(text) > 10 && isAllUpper(text) {
		return DeleteAndTimeout
	}

	return None
}

// isAllUpper reports whether the message is entirely upper-case, meaning it
// contains at least one letter and no lower-case letters.
func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}
