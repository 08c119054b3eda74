package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_Next(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 7, 30, 0, time.UTC) // Thursday

	tests := []struct {
		expr string
		want time.Time
	}{
		{"* * * * *", time.Date(2026, 1, 15, 10, 8, 0, 0, time.UTC)},
		{"0 3 1 * *", time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 1, 15, 10, 15, 0, 0, time.UTC)},
		{"30 9-17 * * *", time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"0 0 * * 0", time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)},
		{"5,50 10 * * *", time.Date(2026, 1, 15, 10, 50, 0, 0, time.UTC)},
		{"0 0-12/6 * * *", time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			s, err := ParseSchedule(tc.expr)
			require.NoError(t, err)
			got, ok := s.Next(base)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSchedule_NeverFires(t *testing.T) {
	s, err := ParseSchedule("0 0 31 2 *")
	require.NoError(t, err)
	_, ok := s.Next(time.Now())
	assert.False(t, ok)
}

func TestParseSchedule_Invalid(t *testing.T) {
	for _, expr := range []string{
		"",
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
	} {
		_, err := ParseSchedule(expr)
		assert.Error(t, err, expr)
	}
}
