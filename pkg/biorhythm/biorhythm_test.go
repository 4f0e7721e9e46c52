package biorhythm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/harrisonrobin/effitime/pkg/interval"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("07:30")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 7, Minute: 30}, c)
	assert.Equal(t, "07:30", c.String())

	for _, bad := range []string{"", "7", "25:00", "07:61", "seven"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel(" Deep ")
	require.NoError(t, err)
	assert.Equal(t, Deep, l)

	_, err = ParseLevel("extreme")
	assert.Error(t, err)
}

func TestPeriods(t *testing.T) {
	wake, sleep := MustClock("08:00"), MustClock("23:00")

	tests := []struct {
		level    Level
		start    time.Duration
		end      time.Duration
		priority Priority
	}{
		{Deep, 9*time.Hour + 30*time.Minute, 12 * time.Hour, Optimal},
		{Medium, 12 * time.Hour, 15 * time.Hour, Good},
		{Light, 9 * time.Hour, 21 * time.Hour, Acceptable},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			ps := Periods(day, wake, sleep, tt.level)
			require.Len(t, ps, 1)
			assert.Equal(t, day.Add(tt.start), ps[0].Window.Start)
			assert.Equal(t, day.Add(tt.end), ps[0].Window.End)
			assert.Equal(t, tt.priority, ps[0].Priority)
			assert.NotEmpty(t, ps[0].Rationale)
		})
	}
}

func TestPeriods_OvernightSleep(t *testing.T) {
	// Wake at 14:00, sleep at 02:00 the next day.
	ps := Periods(day, MustClock("14:00"), MustClock("02:00"), Light)
	require.Len(t, ps, 1)
	assert.Equal(t, day.Add(15*time.Hour), ps[0].Window.Start)
	assert.Equal(t, day.Add(24*time.Hour), ps[0].Window.End)
}

func TestPeriods_CollapsedWindowDropped(t *testing.T) {
	// Two waking hours leave no room for the light window.
	assert.Empty(t, Periods(day, MustClock("08:00"), MustClock("10:00"), Light))
}

func TestPeriods_UnknownLevelIsLight(t *testing.T) {
	ps := Periods(day, MustClock("08:00"), MustClock("23:00"), Level("unknown"))
	require.Len(t, ps, 1)
	assert.Equal(t, Acceptable, ps[0].Priority)
}

func TestPeriodsBetween(t *testing.T) {
	bounds := interval.Interval{Start: day.Add(10 * time.Hour), End: day.Add(58 * time.Hour)}
	ps := PeriodsBetween(bounds, MustClock("08:00"), MustClock("23:00"), Deep)

	require.Len(t, ps, 3)
	// First day's window is clipped to the bounds start.
	assert.Equal(t, day.Add(10*time.Hour), ps[0].Window.Start)
	assert.Equal(t, day.Add(12*time.Hour), ps[0].Window.End)
	assert.Equal(t, day.Add(24*time.Hour+9*time.Hour+30*time.Minute), ps[1].Window.Start)
	assert.Equal(t, day.Add(48*time.Hour+9*time.Hour+30*time.Minute), ps[2].Window.Start)
	assert.Equal(t, day.Add(58*time.Hour), ps[2].Window.End)
}

func TestWakingSpans(t *testing.T) {
	bounds := interval.Interval{Start: day.Add(6 * time.Hour), End: day.Add(34 * time.Hour)}
	spans := WakingSpans(bounds, MustClock("08:00"), MustClock("23:00"))
	require.Len(t, spans, 2)
	assert.Equal(t, interval.Interval{Start: day.Add(8 * time.Hour), End: day.Add(23 * time.Hour)}, spans[0])
	assert.Equal(t, interval.Interval{Start: day.Add(32 * time.Hour), End: day.Add(34 * time.Hour)}, spans[1])
}

func TestClassify(t *testing.T) {
	ps := Periods(day, MustClock("08:00"), MustClock("23:00"), Deep)
	p, ok := Classify(interval.Interval{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)}, ps)
	require.True(t, ok)
	assert.Equal(t, Optimal, p.Priority)

	_, ok = Classify(interval.Interval{Start: day.Add(11 * time.Hour), End: day.Add(13 * time.Hour)}, ps)
	assert.False(t, ok)
}
