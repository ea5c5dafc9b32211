// Package level maps an author's comment count to a display trust level.
package level

import (
	"strconv"
	"strings"
)

// DefaultThresholds is used when the configured list is unusable
var DefaultThresholds = []int{0, 10, 20, 50, 100, 200}

// ParseThresholds reads a comma separated, strictly increasing list of
// non-negative integers, falling back to DefaultThresholds.
func ParseThresholds(s string) []int {
	if strings.TrimSpace(s) == "" {
		return defaults()
	}

	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return defaults()
		}
		if len(out) > 0 && n <= out[len(out)-1] {
			return defaults()
		}
		out = append(out, n)
	}
	return out
}

// Level returns the index of the first threshold above count, minus one.
// A count at or past every threshold yields 0, the same as the lowest bracket.
func Level(count int, thresholds []int) int {
	for i, t := range thresholds {
		if t > count {
			if i == 0 {
				return 0
			}
			return i - 1
		}
	}
	return 0
}

func defaults() []int {
	out := make([]int, len(DefaultThresholds))
	copy(out, DefaultThresholds)
	return out
}
