package calendar_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/calendar"
)

func iv(s string) calendar.Interval {
	return calendar.MustInterval(s)
}

func dayOf(ivs ...string) []calendar.Interval {
	out := make([]calendar.Interval, 0, len(ivs))
	for _, s := range ivs {
		out = append(out, iv(s))
	}
	return out
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := calendar.ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, calendar.TimeOfDay(570), tod)
	assert.Equal(t, "09:30", tod.String())

	tod, err = calendar.ParseTimeOfDay("17:05:00.000000")
	require.NoError(t, err)
	assert.Equal(t, "17:05", tod.String())

	tod, err = calendar.ParseTimeOfDay("24:00")
	require.NoError(t, err)
	assert.Equal(t, calendar.TimeOfDay(1440), tod)
	assert.Equal(t, "24:00", tod.String())

	for _, bad := range []string{"", "9:00", "25:00", "24:30", "24:00x", "ab:cd"} {
		_, err := calendar.ParseTimeOfDay(bad)
		assert.ErrorIs(t, err, calendar.ErrInvalidTime, bad)
	}
}

func TestParseInterval(t *testing.T) {
	got, err := calendar.ParseInterval("09:00-12:00")
	require.NoError(t, err)
	assert.Equal(t, 180, got.Minutes())

	_, err = calendar.ParseInterval("12:00-09:00")
	require.ErrorIs(t, err, calendar.ErrInvalidWindow)
	_, err = calendar.ParseInterval("12:00")
	require.ErrorIs(t, err, calendar.ErrInvalidWindow)

	evening, err := calendar.ParseInterval("18:00-24:00")
	require.NoError(t, err)
	assert.Equal(t, 360, evening.Minutes())
	cal := calendar.Calendar{1: {evening}}
	assert.True(t, cal.IsFree(1, calendar.MustInterval("22:00-24:00")))
}

func TestIsFree(t *testing.T) {
	cal := calendar.Calendar{15: dayOf("09:00-12:00", "14:00-18:00")}

	tests := []struct {
		name   string
		day    calendar.Day
		window string
		want   bool
	}{
		{"inside first", 15, "10:00-11:00", true},
		{"exact second", 15, "14:00-18:00", true},
		{"spans gap", 15, "11:00-15:00", false},
		{"runs past end", 15, "17:00-19:00", false},
		{"other day", 16, "10:00-11:00", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cal.IsFree(tc.day, iv(tc.window)))
		})
	}
}

func TestIsFree_AdjacentIntervalsAnswerLikeMerged(t *testing.T) {
	split := calendar.Calendar{3: dayOf("09:00-10:00", "10:00-12:00")}
	merged := calendar.Calendar{3: dayOf("09:00-12:00")}

	for _, w := range []string{"09:30-10:30", "09:00-12:00", "11:00-12:00"} {
		assert.Equal(t, merged.IsFree(3, iv(w)), split.IsFree(3, iv(w)), w)
	}
}

func TestSubtract(t *testing.T) {
	tests := []struct {
		name    string
		day     []calendar.Interval
		window  string
		want    []calendar.Interval
		touched bool
	}{
		{"exact match removes", dayOf("09:00-12:00"), "09:00-12:00", dayOf(), true},
		{"leading edge shrinks", dayOf("09:00-18:00"), "09:00-11:00", dayOf("11:00-18:00"), true},
		{"trailing edge shrinks", dayOf("09:00-18:00"), "16:00-18:00", dayOf("09:00-16:00"), true},
		{"interior splits", dayOf("09:00-18:00"), "10:00-12:00", dayOf("09:00-10:00", "12:00-18:00"), true},
		{"small fragment dropped", dayOf("09:00-18:00"), "09:30-12:00", dayOf("12:00-18:00"), true},
		{"both fragments dropped", dayOf("09:00-11:00"), "09:30-10:30", dayOf(), true},
		{"starts before ends inside", dayOf("10:00-18:00"), "08:00-12:00", dayOf("12:00-18:00"), true},
		{"starts inside ends after", dayOf("09:00-14:00"), "12:00-16:00", dayOf("09:00-12:00"), true},
		{"covers whole interval", dayOf("10:00-12:00", "14:00-18:00"), "09:00-13:00", dayOf("14:00-18:00"), true},
		{"no overlap untouched", dayOf("09:00-12:00"), "13:00-14:00", dayOf("09:00-12:00"), false},
		{"short untouched interval kept", dayOf("08:00-08:30", "09:00-18:00"), "10:00-12:00", dayOf("08:00-08:30", "09:00-10:00", "12:00-18:00"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cal := calendar.Calendar{7: tc.day}
			touched := cal.Subtract(7, iv(tc.window))
			assert.Equal(t, tc.touched, touched)
			assert.Equal(t, tc.want, cal.Intervals(7))
		})
	}
}

func TestSubtract_MissingDayIsNoop(t *testing.T) {
	cal := calendar.Calendar{1: dayOf("09:00-12:00")}
	assert.False(t, cal.Subtract(2, iv("09:00-10:00")))
	assert.Equal(t, calendar.Calendar{1: dayOf("09:00-12:00")}, cal)
}

func TestSubtract_RemovedWindowNoLongerFree(t *testing.T) {
	cal := calendar.Calendar{15: dayOf("09:00-18:00")}
	require.True(t, cal.Subtract(15, iv("10:00-12:00")))

	assert.False(t, cal.IsFree(15, iv("10:00-12:00")))
	assert.False(t, cal.IsFree(15, iv("10:30-11:00")))
	assert.True(t, cal.IsFree(15, iv("09:00-10:00")))
	assert.True(t, cal.IsFree(15, iv("12:00-18:00")))
}

func TestRestore_MergesNeighbours(t *testing.T) {
	cal := calendar.Calendar{15: dayOf("09:00-10:00", "12:00-18:00")}
	require.True(t, cal.Restore(15, iv("10:00-12:00")))
	assert.Equal(t, dayOf("09:00-18:00"), cal.Intervals(15))

	require.True(t, cal.Restore(15, iv("19:00-20:00")))
	assert.Equal(t, dayOf("09:00-18:00", "19:00-20:00"), cal.Intervals(15))

	assert.False(t, cal.Restore(16, iv("10:00-12:00")))
}

func TestSubtractRestoreRoundTrip(t *testing.T) {
	cal := calendar.Calendar{4: dayOf("09:00-18:00")}
	for i := 0; i < 3; i++ {
		cal.Subtract(4, iv("11:00-13:00"))
		cal.Restore(4, iv("11:00-13:00"))
	}
	assert.Equal(t, dayOf("09:00-18:00"), cal.Intervals(4))
}

func TestClone_IsDeep(t *testing.T) {
	cal := calendar.Calendar{1: dayOf("09:00-12:00")}
	cp := cal.Clone()
	cp.Subtract(1, iv("09:00-12:00"))
	assert.Equal(t, dayOf("09:00-12:00"), cal.Intervals(1))
}

func TestCalendarJSON(t *testing.T) {
	cal := calendar.Calendar{2: dayOf("14:00-16:00", "09:00-12:00"), 1: dayOf()}
	data, err := json.Marshal(cal)
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"day":1,"intervals":[]},{"day":2,"intervals":["14:00-16:00","09:00-12:00"]}]`,
		string(data))

	var back calendar.Calendar
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, dayOf("09:00-12:00", "14:00-16:00"), back.Intervals(2))
	assert.Empty(t, back.Intervals(1))

	require.Error(t, json.Unmarshal([]byte(`[{"day":32,"intervals":[]}]`), &back))
	require.Error(t, json.Unmarshal([]byte(`[{"day":1,"intervals":["10:00-09:00"]}]`), &back))
}
