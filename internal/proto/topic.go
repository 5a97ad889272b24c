// Package proto implements the event-bus core: topics, patterns, hats,
// events, and the in-process publish/subscribe hub that routes them.
package proto

import "strings"

// Matches reports whether topic satisfies pattern.
//
// A pattern is a dot-separated sequence of segments. Each segment is
// either a literal (compared by exact string equality), "*" (matches
// exactly one topic segment), or, only as the final segment, "**"
// (matches all remaining topic segments, including zero of them).
//
// An empty pattern matches only the empty topic.
func Matches(pattern, topic string) bool {
	if pattern == "" {
		return topic == ""
	}

	patSegs := strings.Split(pattern, ".")
	topicSegs := strings.Split(topic, ".")

	for i, p := range patSegs {
		if p == "**" {
			// Must be the final segment of the pattern by construction;
			// it consumes everything remaining in the topic.
			return true
		}
		if i >= len(topicSegs) {
			return false
		}
		if p == "*" {
			continue
		}
		if p != topicSegs[i] {
			return false
		}
	}

	// Pattern exhausted without a trailing "**": lengths must match exactly.
	return len(patSegs) == len(topicSegs)
}
