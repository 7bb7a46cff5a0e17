package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2020", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"202006", time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"20200620", time.Date(2020, 6, 20, 0, 0, 0, 0, time.UTC)},
		{"2020-06-20", time.Date(2020, 6, 20, 0, 0, 0, 0, time.UTC)},
		{"2020062002", time.Date(2020, 6, 20, 2, 0, 0, 0, time.UTC)},
		{"202006200253", time.Date(2020, 6, 20, 2, 53, 0, 0, time.UTC)},
		{"2020-06-20-02", time.Date(2020, 6, 20, 2, 0, 0, 0, time.UTC)},
		{"20200620025300", time.Date(2020, 6, 20, 2, 53, 0, 0, time.UTC)},
		{"2020-06-20-02-53", time.Date(2020, 6, 20, 2, 53, 0, 0, time.UTC)},
		{"2020-06-20-02-53-00", time.Date(2020, 6, 20, 2, 53, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"abc",
		"20",         // unrecognized length
		"99999999",   // right length, not a date
		"2020-13-40", // dashed form with impossible month/day
		"2020061",    // length 7
	} {
		t.Run("invalid/"+in, func(t *testing.T) {
			_, ok := Parse(in)
			assert.False(t, ok)
		})
	}
}

// The length-10 case must prefer the dashed date and only fall back to
// compact date+hour when the dashes are absent.
func TestParse_AmbiguousLength10(t *testing.T) {
	dashed, ok := Parse("2020-06-20")
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 6, 20, 0, 0, 0, 0, time.UTC), dashed)

	compact, ok := Parse("2020062013")
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 6, 20, 13, 0, 0, 0, time.UTC), compact)
}

func TestToLocal(t *testing.T) {
	// Summer observation: America/New_York is UTC-4 under DST.
	utc := time.Date(2020, 6, 20, 2, 53, 0, 0, time.UTC)
	local, err := ToLocal(utc, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, 22, local.Hour())
	assert.Equal(t, 19, local.Day())
	assert.True(t, local.Equal(utc), "conversion must not move the instant")

	// Winter observation: UTC-5, no DST.
	winter := time.Date(2020, 1, 15, 2, 53, 0, 0, time.UTC)
	local, err = ToLocal(winter, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, 21, local.Hour())
}

func TestToLocal_BadZone(t *testing.T) {
	_, err := ToLocal(time.Now(), "Not/AZone")
	assert.Error(t, err)
}
