// Package topic implements routing keys for the event bus.
//
// Topics are dot-separated strings such as "impl.done" or "review.started".
// A topic used as a subscription pattern may use "*" in place of a segment
// to match any value there, and a bare "*" matches every topic.
package topic

import "strings"

// Topic is a routing key. It is a plain string wrapper so it can be used
// directly as a map key and compared with ==.
type Topic string

// New builds a Topic from a string. It exists mainly for call sites that
// want the conversion to read as an explicit construction.
func New(s string) Topic {
	return Topic(s)
}

// String returns the topic's underlying string.
func (t Topic) String() string {
	return string(t)
}

// IsGlobalWildcard reports whether t is the bare "*" pattern that matches
// every topic. The hat registry uses this to give the fallback agent lower
// priority than any concrete subscription.
func (t Topic) IsGlobalWildcard() bool {
	return t == "*"
}

// Matches reports whether the pattern t matches the target topic.
//
// Rules:
//   - "*" alone matches everything.
//   - An exact string match always matches.
//   - Otherwise the pattern is split on "." and matched segment by segment,
//     where a "*" segment matches any single segment in target. The number
//     of segments must agree, so "impl.*" does not match "impl.sub.done".
func (t Topic) Matches(target Topic) bool {
	return t.MatchesString(string(target))
}

// MatchesString is the string form of Matches for call sites that hold a
// plain string target. Exact and bare "*" matches do not allocate; a
// segment-wildcard pattern splits both strings and does.
func (t Topic) MatchesString(target string) bool {
	pattern := string(t)

	if pattern == "*" {
		return true
	}
	if pattern == target {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}

	patternParts := strings.Split(pattern, ".")
	targetParts := strings.Split(target, ".")
	if len(patternParts) != len(targetParts) {
		return false
	}
	for i, p := range patternParts {
		if p != "*" && p != targetParts[i] {
			return false
		}
	}
	return true
}
