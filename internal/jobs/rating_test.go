package jobs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/calendar"
	"dispatch-service/internal/domain"
	"dispatch-service/internal/notify"
	"dispatch-service/internal/rating"
	"dispatch-service/internal/store"
)

func completedJob(t *testing.T, f *fixture) domain.Job {
	t.Helper()
	f.addWorker(t, "w1", map[calendar.Day]string{15: "09:00-18:00"})
	job := f.create(t, domain.PaymentCard)
	f.transition(t, job.ID, domain.StatusAccepted)
	f.transition(t, job.ID, domain.StatusInProgress)
	return f.transition(t, job.ID, domain.StatusCompleted).Job
}

func TestRate_ResubmissionRetractsPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := completedJob(t, f)

	_, err := store.MutateWorker(ctx, f.repo, "w1", func(w *domain.Worker) error {
		w.Rating, w.RatingCount = 4.5, 1
		return nil
	})
	require.NoError(t, err)

	res, err := f.svc.Rate(ctx, job.ID, rating.ByClient{ClientID: clientID}, 4, "tidy work")
	require.NoError(t, err)
	require.NotNil(t, res.Job.WorkerRating)
	assert.Equal(t, 4, *res.Job.WorkerRating)
	w := f.worker(t, "w1")
	assert.InDelta(t, 4.25, w.Rating, 1e-9)
	assert.Equal(t, 2, w.RatingCount)

	_, err = store.MutateWorker(ctx, f.repo, "w1", func(w *domain.Worker) error {
		w.Rating = 4.0
		return nil
	})
	require.NoError(t, err)

	res, err = f.svc.Rate(ctx, job.ID, rating.ByClient{ClientID: clientID}, 2, "late")
	require.NoError(t, err)
	assert.Equal(t, 2, *res.Job.WorkerRating)
	assert.Equal(t, "late", res.Job.WorkerComment)

	w = f.worker(t, "w1")
	assert.InDelta(t, 3.0, w.Rating, 1e-9)
	assert.Equal(t, 2, w.RatingCount)
	assert.Contains(t, f.sent.To("w1"), notify.KindRatingReceived)
}

func TestRate_WorkerRatesClient(t *testing.T) {
	f := newFixture(t)
	job := completedJob(t, f)

	res, err := f.svc.Rate(context.Background(), job.ID, rating.ByWorker{WorkerID: "w1"}, 5, "")
	require.NoError(t, err)
	require.NotNil(t, res.Job.ClientRating)
	assert.Equal(t, 5, *res.Job.ClientRating)
	assert.Nil(t, res.Job.WorkerRating)

	c, err := f.repo.GetClient(context.Background(), clientID)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, c.Rating, 1e-9)
	assert.Equal(t, 1, c.RatingCount)
}

func TestRate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := completedJob(t, f)

	_, err := f.svc.Rate(ctx, job.ID, rating.ByClient{ClientID: clientID}, 6, "")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.svc.Rate(ctx, job.ID, rating.ByClient{ClientID: "someone-else"}, 3, "")
	assert.Equal(t, domain.CodeRatingNotPermitted, domain.CodeOf(err))

	_, err = f.svc.Rate(ctx, job.ID, rating.ByWorker{WorkerID: "w2"}, 3, "")
	assert.Equal(t, domain.CodeRatingNotPermitted, domain.CodeOf(err))

	open := f.create(t, domain.PaymentCash)
	_, err = f.svc.Rate(ctx, open.ID, rating.ByClient{ClientID: clientID}, 3, "")
	assert.Equal(t, domain.CodeRatingNotPermitted, domain.CodeOf(err))

	w := f.worker(t, "w1")
	assert.Equal(t, 0, w.RatingCount)
}
