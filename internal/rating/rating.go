// Package rating keeps running means of the scores workers and clients give
// each other.
package rating

import (
	"dispatch-service/internal/domain"
)

const (
	MinScore = 1
	MaxScore = 5
)

// ValidScore reports whether s is on the 1..5 scale.
func ValidScore(s int) bool {
	return s >= MinScore && s <= MaxScore
}

// Rater identifies who submits a rating: a ByClient rates the job's worker,
// a ByWorker rates the job's client.
type Rater interface {
	ID() string
	sealed()
}

// ByClient is a rating submitted by the job's client.
type ByClient struct{ ClientID string }

// ByWorker is a rating submitted by the job's worker.
type ByWorker struct{ WorkerID string }

func (r ByClient) ID() string { return r.ClientID }
func (r ByWorker) ID() string { return r.WorkerID }

func (ByClient) sealed() {}
func (ByWorker) sealed() {}

// Aggregate is a running mean.
type Aggregate struct {
	Mean  float64
	Count int
}

// Add folds score into the mean.
func Add(a Aggregate, score int) Aggregate {
	if a.Count <= 0 {
		return Aggregate{Mean: float64(score), Count: 1}
	}
	return Aggregate{
		Mean:  (a.Mean*float64(a.Count) + float64(score)) / float64(a.Count+1),
		Count: a.Count + 1,
	}
}

// Retract removes a score previously folded in.
func Retract(a Aggregate, score int) Aggregate {
	if a.Count <= 1 {
		return Aggregate{}
	}
	return Aggregate{
		Mean:  (a.Mean*float64(a.Count) - float64(score)) / float64(a.Count-1),
		Count: a.Count - 1,
	}
}

// Resubmit replaces previous (when set) with score.
func Resubmit(a Aggregate, previous *int, score int) Aggregate {
	if previous != nil {
		a = Retract(a, *previous)
	}
	return Add(a, score)
}

// ApplyToWorker folds a client's score into the worker's running rating.
func ApplyToWorker(w *domain.Worker, previous *int, score int) {
	next := Resubmit(Aggregate{Mean: w.Rating, Count: w.RatingCount}, previous, score)
	w.Rating, w.RatingCount = next.Mean, next.Count
}

// ApplyToClient folds a worker's score into the client's running rating.
func ApplyToClient(c *domain.Client, previous *int, score int) {
	next := Resubmit(Aggregate{Mean: c.Rating, Count: c.RatingCount}, previous, score)
	c.Rating, c.RatingCount = next.Mean, next.Count
}
