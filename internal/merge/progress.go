package merge

import (
	"errors"
	"regexp"
	"strconv"
)

// Progress bounds used by the monitor's bar.
const (
	MinProgress = -100
	MaxProgress = 100
)

var progressPattern = regexp.MustCompile(`[+-]?\d+`)

// ParseProgress reads the first signed integer in text such as "+35",
// "-20%" or "进度 42". Values outside [-100, 100] are clamped. The second
// result is false when the text holds no number.
func ParseProgress(text string) (int, bool) {
	match := progressPattern.FindString(text)
	if match == "" {
		return 0, false
	}
	v, err := strconv.Atoi(match)
	if err != nil {
		if !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		if match[0] == '-' {
			return MinProgress, true
		}
		return MaxProgress, true
	}
	return ClampProgress(v), true
}

// ClampProgress limits v to [-100, 100].
func ClampProgress(v int) int {
	return min(max(v, MinProgress), MaxProgress)
}
