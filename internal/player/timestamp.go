package player

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatTimestamp renders seconds as HH:MM:SS, with a .mmm suffix when the
// position is not on a whole second.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	ms := total % 1000
	s := total / 1000
	h, m, sec := s/3600, s%3600/60, s%60
	if ms == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, sec, ms)
}

// ParseTimestamp accepts [[H:]M:]S[.fff] and returns the position in seconds.
func ParseTimestamp(text string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) > 3 || parts[0] == "" {
		return 0, fmt.Errorf("invalid timestamp %q", text)
	}

	last := len(parts) - 1
	sec, err := strconv.ParseFloat(parts[last], 64)
	if err != nil || sec < 0 || math.IsNaN(sec) || math.IsInf(sec, 0) || (last > 0 && sec >= 60) {
		return 0, fmt.Errorf("invalid seconds in timestamp %q", text)
	}

	total := sec
	unit := 60.0
	for i := last - 1; i >= 0; i-- {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 || (i > 0 && n >= 60) {
			return 0, fmt.Errorf("invalid field %q in timestamp %q", parts[i], text)
		}
		total += float64(n) * unit
		unit *= 60
	}
	return total, nil
}
