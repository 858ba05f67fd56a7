package player

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00"},
		{42.5, "00:00:42.500"},
		{59.9996, "00:01:00"},
		{3725, "01:02:05"},
		{3725.125, "01:02:05.125"},
		{-3, "00:00:00"},
		{math.NaN(), "00:00:00"},
		{100 * 3600, "100:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTimestamp(tt.in), "FormatTimestamp(%v)", tt.in)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"42.5", 42.5},
		{"  7 ", 7},
		{"1:05", 65},
		{"90:00", 5400},
		{"01:02:05", 3725},
		{"01:02:05.125", 3725.125},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		require.NoError(t, err, "ParseTimestamp(%q)", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "ParseTimestamp(%q)", tt.in)
	}

	for _, bad := range []string{"", "abc", "1:2:3:4", "1:60", "1:75:00", "-5", "1:-2", ":30", "inf", "1:x:00"} {
		_, err := ParseTimestamp(bad)
		assert.Error(t, err, "ParseTimestamp(%q)", bad)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	for _, sec := range []float64{0, 1.5, 61.001, 3599.999, 86399} {
		got, err := ParseTimestamp(FormatTimestamp(sec))
		require.NoError(t, err)
		assert.InDelta(t, sec, got, 0.0005)
	}
}
