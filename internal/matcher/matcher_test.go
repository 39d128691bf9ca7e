package matcher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/calendar"
	"dispatch-service/internal/domain"
	"dispatch-service/internal/matcher"
	"dispatch-service/internal/store"
)

var june = time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

func at(day int, hhmm string) time.Time {
	tod, err := calendar.ParseTimeOfDay(hhmm)
	if err != nil {
		panic(err)
	}
	return june.AddDate(0, 0, day-1).Add(time.Duration(tod) * time.Minute)
}

func worker(id string, active bool, cats []int64, free map[calendar.Day]string) domain.Worker {
	cal := calendar.Calendar{}
	for d, iv := range free {
		cal[d] = []calendar.Interval{calendar.MustInterval(iv)}
	}
	return domain.Worker{ID: id, Active: active, Categories: cats, Calendar: cal, HorizonStart: june}
}

func seed(t *testing.T, workers ...domain.Worker) *store.Memory {
	t.Helper()
	repo := store.NewMemory()
	for _, w := range workers {
		_, err := repo.CreateWorker(context.Background(), w)
		require.NoError(t, err)
	}
	return repo
}

func TestFind_FreeQualifiedWorker(t *testing.T) {
	repo := seed(t, worker("w1", true, []int64{7}, map[calendar.Day]string{15: "09:00-18:00"}))
	m := matcher.New(repo, time.UTC)

	w, found, err := m.Find(context.Background(), matcher.Request{
		CategoryID: 7, Start: at(15, "10:00"), End: at(15, "12:00"),
	})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "w1", w.ID)
}

func TestFind_FiltersIneligible(t *testing.T) {
	free := map[calendar.Day]string{15: "09:00-18:00"}
	tests := []struct {
		name    string
		worker  domain.Worker
		exclude string
	}{
		{"inactive", worker("w1", false, []int64{7}, free), ""},
		{"unqualified", worker("w1", true, []int64{8}, free), ""},
		{"excluded", worker("w1", true, []int64{7}, free), "w1"},
		{"busy", worker("w1", true, []int64{7}, map[calendar.Day]string{15: "13:00-18:00"}), ""},
		{"no such day", worker("w1", true, []int64{7}, map[calendar.Day]string{16: "09:00-18:00"}), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := matcher.New(seed(t, tt.worker), time.UTC)
			_, found, err := m.Find(context.Background(), matcher.Request{
				CategoryID: 7, Start: at(15, "10:00"), End: at(15, "12:00"), ExcludeWorkerID: tt.exclude,
			})
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestFind_OutsideHorizon(t *testing.T) {
	m := matcher.New(seed(t, worker("w1", true, []int64{7}, map[calendar.Day]string{15: "09:00-18:00"})), time.UTC)
	july15 := time.Date(2026, time.July, 15, 10, 0, 0, 0, time.UTC)

	_, found, err := m.Find(context.Background(), matcher.Request{
		CategoryID: 7, Start: july15, End: july15.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFind_DeterministicAndExclusion(t *testing.T) {
	free := map[calendar.Day]string{15: "09:00-18:00"}
	repo := seed(t,
		worker("w3", true, []int64{7}, free),
		worker("w1", true, []int64{7}, free),
		worker("w2", true, []int64{7}, free),
	)
	m := matcher.New(repo, time.UTC)
	req := matcher.Request{CategoryID: 7, Start: at(15, "10:00"), End: at(15, "12:00")}

	w, found, err := m.Find(context.Background(), req)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "w1", w.ID)

	req.ExcludeWorkerID = "w1"
	w, found, err = m.Find(context.Background(), req)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "w2", w.ID)
}

func TestFind_InvalidWindow(t *testing.T) {
	m := matcher.New(store.NewMemory(), time.UTC)

	_, _, err := m.Find(context.Background(), matcher.Request{
		CategoryID: 7, Start: at(15, "12:00"), End: at(15, "10:00"),
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Equal(t, domain.CodeInvalidWindow, domain.CodeOf(err))

	_, _, err = m.Find(context.Background(), matcher.Request{
		CategoryID: 7, Start: at(15, "22:00"), End: at(16, "01:00"),
	})
	assert.Equal(t, domain.CodeInvalidWindow, domain.CodeOf(err))
}

func TestResolve_UsesLocation(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	start := time.Date(2026, time.June, 15, 8, 0, 0, 0, time.UTC)
	slot, err := matcher.Resolve(start, start.Add(2*time.Hour), madrid)
	require.NoError(t, err)
	assert.Equal(t, calendar.Day(15), slot.Day)
	assert.Equal(t, "10:00-12:00", slot.Window.String())
}

type failingLister struct{}

func (failingLister) ListWorkers(context.Context, store.WorkerFilter) ([]domain.Worker, error) {
	return nil, errors.New("db down")
}

func TestFind_ListError(t *testing.T) {
	m := matcher.New(failingLister{}, time.UTC)
	_, found, err := m.Find(context.Background(), matcher.Request{
		CategoryID: 7, Start: at(15, "10:00"), End: at(15, "12:00"),
	})
	require.Error(t, err)
	assert.False(t, found)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}

func TestEligible_HorizonReadInServiceLocation(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	october := time.Date(2026, time.October, 1, 0, 0, 0, 0, madrid)

	slot, err := matcher.Resolve(
		time.Date(2026, time.October, 15, 10, 0, 0, 0, madrid),
		time.Date(2026, time.October, 15, 12, 0, 0, 0, madrid),
		madrid,
	)
	require.NoError(t, err)

	for _, horizon := range []time.Time{october, october.UTC()} {
		w := domain.Worker{
			ID: "w1", Active: true, Categories: []int64{7}, HorizonStart: horizon,
			Calendar: calendar.Calendar{15: {calendar.MustInterval("09:00-18:00")}},
		}
		assert.True(t, matcher.Eligible(w, 7, slot, ""), "horizon stored as %s", horizon)
	}
}
