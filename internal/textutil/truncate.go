// Package textutil holds small string helpers shared by the log previews.
package textutil

import "unicode/utf8"

// Truncate shortens s to at most max runes and marks the cut with "...".
// It never splits a multi-byte character.
func Truncate(s string, max int) string {
	if max < 0 {
		max = 0
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
