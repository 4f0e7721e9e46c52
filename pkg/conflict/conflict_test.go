package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/effitime/pkg/interval"
)

var base = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func slot(h1, m1, h2, m2 int) interval.Interval {
	return interval.Interval{
		Start: base.Add(time.Duration(h1)*time.Hour + time.Duration(m1)*time.Minute),
		End:   base.Add(time.Duration(h2)*time.Hour + time.Duration(m2)*time.Minute),
	}
}

func TestCheckFit_Fits(t *testing.T) {
	res := CheckFit(slot(11, 0, 12, 0), []interval.Interval{slot(9, 0, 10, 0), slot(12, 0, 13, 0)})
	assert.Equal(t, Fits, res.Verdict)
	assert.True(t, res.OK())
	assert.Nil(t, res.AvailableStart)
}

func TestCheckFit_InvalidOrder(t *testing.T) {
	res := CheckFit(slot(11, 0, 11, 0), nil)
	assert.Equal(t, InvalidOrder, res.Verdict)
	assert.NotEmpty(t, res.Message)

	res = CheckFit(slot(12, 0, 11, 0), nil)
	assert.Equal(t, InvalidOrder, res.Verdict)
}

func TestCheckFit_ScenarioB(t *testing.T) {
	res := CheckFit(slot(10, 0, 11, 0), []interval.Interval{slot(9, 0, 10, 30)})
	require.Equal(t, Conflicts, res.Verdict)
	assert.Nil(t, res.AvailableStart, "the only neighbour ends after the proposed start")
	assert.Nil(t, res.AvailableEnd)
	assert.Contains(t, res.Message, "overlaps")
	assert.Len(t, res.Overlapping, 1)
}

func TestCheckFit_Neighbours(t *testing.T) {
	existing := []interval.Interval{
		slot(7, 0, 8, 0),
		slot(8, 0, 9, 30),
		slot(10, 0, 11, 0),
		slot(12, 0, 13, 0),
		slot(14, 0, 15, 0),
	}
	res := CheckFit(slot(9, 45, 11, 45), existing)
	require.Equal(t, Conflicts, res.Verdict)
	require.NotNil(t, res.AvailableStart)
	require.NotNil(t, res.AvailableEnd)
	assert.Equal(t, base.Add(9*time.Hour+30*time.Minute), *res.AvailableStart)
	assert.Equal(t, base.Add(12*time.Hour), *res.AvailableEnd)
}

func TestCheckFit_TouchingIsNotAConflict(t *testing.T) {
	res := CheckFit(slot(10, 0, 11, 0), []interval.Interval{slot(9, 0, 10, 0), slot(11, 0, 12, 0)})
	assert.Equal(t, Fits, res.Verdict)
}

func TestCheckFit_Idempotent(t *testing.T) {
	existing := []interval.Interval{slot(9, 0, 10, 30), slot(13, 0, 14, 0)}
	proposed := slot(10, 0, 13, 30)
	first := CheckFit(proposed, existing)
	second := CheckFit(proposed, existing)
	assert.Equal(t, first, second)
}
