package program

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveCurrentDay(t *testing.T) {
	start := date(2024, 1, 1)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"開始日当日は1日目", start, 1},
		{"開始日の深夜も1日目", start.Add(23*time.Hour + 59*time.Minute), 1},
		{"翌日の0時は2日目", date(2024, 1, 2), 2},
		{"2週間後は15日目", date(2024, 1, 15), 15},
		{"29日後は30日目", start.AddDate(0, 0, 29), 30},
		{"45日経過しても30日目", start.AddDate(0, 0, 45), 30},
		{"開始日より前は1日目", date(2023, 12, 25), 1},
		{"大きく過去でも1日目", date(2000, 1, 1), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveCurrentDay(start, tt.now))
		})
	}
}

func TestResolveCurrentDay_UsesStartLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, tokyo)

	// UTCでは1月1日16時だが、東京では1月2日1時
	now := time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, ResolveCurrentDay(start, now))
}

func TestResolveCurrentDay_MonotonicAndBounded(t *testing.T) {
	start := date(2024, 3, 1)
	prev := 0
	for h := -48; h <= 24*40; h += 5 {
		now := start.Add(time.Duration(h) * time.Hour)
		got := ResolveCurrentDay(start, now)
		require.GreaterOrEqual(t, got, 1)
		require.LessOrEqual(t, got, ProgramLength)
		require.GreaterOrEqual(t, got, prev, "現在日が減少してはいけない（%v）", now)
		prev = got
	}
}

func TestResolveCurrentDay_Idempotent(t *testing.T) {
	start := date(2024, 1, 1)
	now := date(2024, 1, 10).Add(13 * time.Hour)
	first := ResolveCurrentDay(start, now)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, ResolveCurrentDay(start, now))
	}
}

func TestStartDateOf(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	got := StartDateOf(time.Date(2024, 5, 1, 20, 30, 0, 0, time.UTC), tokyo)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, tokyo), got)
}

func TestWeek(t *testing.T) {
	assert.Equal(t, 1, Week(1))
	assert.Equal(t, 1, Week(7))
	assert.Equal(t, 2, Week(8))
	assert.Equal(t, 3, Week(15))
	assert.Equal(t, 5, Week(29))
	assert.Equal(t, 5, Week(30))
	assert.Equal(t, 1, Week(0))
	assert.Equal(t, 5, WeekCount())
}

func TestWeekDays(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, WeekDays(1))
	assert.Equal(t, []int{22, 23, 24, 25, 26, 27, 28}, WeekDays(4))
	assert.Equal(t, []int{29, 30}, WeekDays(5))
	assert.Nil(t, WeekDays(0))
	assert.Nil(t, WeekDays(6))
}
