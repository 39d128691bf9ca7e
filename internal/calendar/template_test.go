package calendar_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/calendar"
)

func ptr(s string) *calendar.Interval {
	v := calendar.MustInterval(s)
	return &v
}

// weekdaysTemplate is free 09:00-13:00 and 15:00-19:00 Monday to Friday.
func weekdaysTemplate() calendar.WeeklyTemplate {
	var t calendar.WeeklyTemplate
	for wd := 0; wd < 5; wd++ {
		t[wd] = calendar.DayTemplate{ptr("09:00-13:00"), ptr("15:00-19:00")}
	}
	return t
}

func TestWeekdayIndex(t *testing.T) {
	assert.Equal(t, 0, calendar.WeekdayIndex(time.Monday))
	assert.Equal(t, 6, calendar.WeekdayIndex(time.Sunday))
}

func TestBuild_Month(t *testing.T) {
	// June 2026 starts on a Monday.
	start, days := calendar.MonthHorizon(time.Date(2026, time.June, 17, 8, 0, 0, 0, time.UTC))
	require.Equal(t, 30, days)

	cal, err := calendar.Build(weekdaysTemplate(), start, days)
	require.NoError(t, err)
	assert.Len(t, cal, 30)
	assert.Equal(t, dayOf("09:00-13:00", "15:00-19:00"), cal.Intervals(1))
	assert.Empty(t, cal.Intervals(6))
	assert.Empty(t, cal.Intervals(7))
	assert.True(t, cal.IsFree(30, iv("10:00-12:00")))
}

func TestBuild_RejectsRepeatedDays(t *testing.T) {
	_, err := calendar.Build(weekdaysTemplate(), time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC), 31)
	require.ErrorIs(t, err, calendar.ErrInvalidHorizon)

	_, err = calendar.Build(weekdaysTemplate(), time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC), 0)
	require.ErrorIs(t, err, calendar.ErrInvalidHorizon)
}

func TestBuild_RejectsOverlappingWindows(t *testing.T) {
	var tmpl calendar.WeeklyTemplate
	tmpl[2] = calendar.DayTemplate{ptr("09:00-13:00"), ptr("12:00-14:00")}
	_, err := calendar.Build(tmpl, time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC), 30)
	require.ErrorIs(t, err, calendar.ErrInvalidTemplate)
}

func TestRebuild_ReappliesCommitments(t *testing.T) {
	start := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	committed := []calendar.Commitment{
		{Ref: "a", Start: time.Date(2026, time.June, 15, 10, 0, 0, 0, time.UTC), End: time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)},
		// outside the horizon, ignored
		{Ref: "b", Start: time.Date(2026, time.July, 1, 10, 0, 0, 0, time.UTC), End: time.Date(2026, time.July, 1, 11, 0, 0, 0, time.UTC)},
		// weekend, nothing to subtract from
		{Ref: "c", Start: time.Date(2026, time.June, 6, 10, 0, 0, 0, time.UTC), End: time.Date(2026, time.June, 6, 11, 0, 0, 0, time.UTC)},
	}

	cal, err := calendar.Rebuild(weekdaysTemplate(), start, 30, committed)
	require.NoError(t, err)
	assert.Equal(t, dayOf("09:00-10:00", "15:00-19:00"), cal.Intervals(15))
	assert.Empty(t, cal.Intervals(6))
}

func TestRebuild_FailsWholeOnBadCommitment(t *testing.T) {
	start := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	committed := []calendar.Commitment{
		{Ref: "ok", Start: time.Date(2026, time.June, 2, 10, 0, 0, 0, time.UTC), End: time.Date(2026, time.June, 2, 11, 0, 0, 0, time.UTC)},
		{Ref: "bad", Start: time.Date(2026, time.June, 3, 23, 0, 0, 0, time.UTC), End: time.Date(2026, time.June, 4, 1, 0, 0, 0, time.UTC)},
	}

	cal, err := calendar.Rebuild(weekdaysTemplate(), start, 30, committed)
	require.ErrorIs(t, err, calendar.ErrInvalidWindow)
	assert.Nil(t, cal)
}

func TestWindowOf(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	day, w, err := calendar.WindowOf(
		time.Date(2026, time.March, 9, 8, 15, 0, 0, loc),
		time.Date(2026, time.March, 9, 9, 45, 0, 0, time.UTC), // 10:45 in loc
	)
	require.NoError(t, err)
	assert.Equal(t, calendar.Day(9), day)
	assert.Equal(t, "08:15-10:45", w.String())

	_, _, err = calendar.WindowOf(time.Date(2026, time.March, 9, 10, 0, 0, 0, loc), time.Date(2026, time.March, 9, 10, 0, 0, 0, loc))
	require.ErrorIs(t, err, calendar.ErrInvalidWindow)

	day, w, err = calendar.WindowOf(
		time.Date(2026, time.March, 31, 22, 0, 0, 0, loc),
		time.Date(2026, time.April, 1, 0, 0, 0, 0, loc),
	)
	require.NoError(t, err)
	assert.Equal(t, calendar.Day(31), day)
	assert.Equal(t, "22:00-24:00", w.String())

	_, _, err = calendar.WindowOf(
		time.Date(2026, time.March, 9, 22, 0, 0, 0, loc),
		time.Date(2026, time.March, 10, 0, 1, 0, 0, loc),
	)
	require.ErrorIs(t, err, calendar.ErrInvalidWindow)
}

func TestWeeklyTemplateJSON(t *testing.T) {
	data, err := json.Marshal(weekdaysTemplate())
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 7)
	assert.Equal(t, []any{nil, nil}, raw[6]["windows"])

	var back calendar.WeeklyTemplate
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, weekdaysTemplate(), back)
}

func TestWeeklyTemplateJSON_Rejects(t *testing.T) {
	tests := map[string]string{
		"too few days":   `[{"weekday":0,"windows":[null,null]}]`,
		"wrong slots":    `[{"weekday":0,"windows":[null]},{"weekday":1,"windows":[null,null]},{"weekday":2,"windows":[null,null]},{"weekday":3,"windows":[null,null]},{"weekday":4,"windows":[null,null]},{"weekday":5,"windows":[null,null]},{"weekday":6,"windows":[null,null]}]`,
		"repeated day":   `[{"weekday":0,"windows":[null,null]},{"weekday":0,"windows":[null,null]},{"weekday":2,"windows":[null,null]},{"weekday":3,"windows":[null,null]},{"weekday":4,"windows":[null,null]},{"weekday":5,"windows":[null,null]},{"weekday":6,"windows":[null,null]}]`,
		"overlap window": `[{"weekday":0,"windows":["09:00-12:00","11:00-13:00"]},{"weekday":1,"windows":[null,null]},{"weekday":2,"windows":[null,null]},{"weekday":3,"windows":[null,null]},{"weekday":4,"windows":[null,null]},{"weekday":5,"windows":[null,null]},{"weekday":6,"windows":[null,null]}]`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			var tmpl calendar.WeeklyTemplate
			assert.Error(t, json.Unmarshal([]byte(body), &tmpl))
		})
	}
}
