// Package domain holds the entities of the dispatch service and the error kinds
// its operations report.
package domain

import (
	"slices"
	"time"

	"dispatch-service/internal/calendar"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRejected   Status = "rejected"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusAssigned, StatusAccepted, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusRejected:
		return st, true
	}
	return "", false
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

// HoldsWindow reports whether a job in s keeps its window out of the worker's
// free time when the calendar is rebuilt.
func (s Status) HoldsWindow() bool {
	return s == StatusAssigned || s == StatusAccepted || s == StatusInProgress
}

// Committed reports whether the job's window has been subtracted from the
// worker's calendar.
func (s Status) Committed() bool {
	return s == StatusAccepted || s == StatusInProgress
}

// Rateable reports whether ratings may be submitted in s.
func (s Status) Rateable() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// PaymentMethod is how the client pays for a job.
type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

// PaymentStatus tracks the out-of-band cash collection.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentIssued  PaymentStatus = "issued"
	PaymentPaid    PaymentStatus = "paid"
)

// ServiceCategory is a kind of work a worker can be qualified for.
type ServiceCategory struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	BaseRatePerHourCts int64  `json:"base_rate_per_hour_cents"`
	Active             bool   `json:"active"`
}

// Worker is a person who can be matched to jobs.
type Worker struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Email        string                  `json:"email"`
	Active       bool                    `json:"active"`
	Categories   []int64                 `json:"category_ids"`
	Template     calendar.WeeklyTemplate `json:"weekly_template"`
	Calendar     calendar.Calendar       `json:"calendar"`
	HorizonStart time.Time               `json:"horizon_start"`
	// BusyBlocks is busy time imported from an external calendar. Rebuilds
	// keep it out of the free time like a job.
	BusyBlocks  []calendar.Commitment `json:"busy_blocks"`
	Rating      float64               `json:"rating"`
	RatingCount int                   `json:"rating_count"`
	Version     int64                 `json:"-"`
}

// Qualified reports whether the worker may take jobs of category.
func (w Worker) Qualified(category int64) bool {
	return slices.Contains(w.Categories, category)
}

// Client is a person who requests jobs.
type Client struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	PaymentAccount string  `json:"payment_account,omitempty"`
	Rating         float64 `json:"rating"`
	RatingCount    int     `json:"rating_count"`
	Version        int64   `json:"-"`
}

// Job is a service request and its lifecycle.
type Job struct {
	ID               string        `json:"id"`
	ClientID         string        `json:"client_id"`
	WorkerID         *string       `json:"worker_id"`
	CategoryID       int64         `json:"category_id"`
	Description      string        `json:"description,omitempty"`
	Specifications   string        `json:"specifications,omitempty"`
	Location         string        `json:"location,omitempty"`
	RequestedAt      time.Time     `json:"requested_at"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	Status           Status        `json:"status"`
	AmountCents      int64         `json:"amount_cents"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	PaymentReference string        `json:"payment_reference,omitempty"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	DurationHours    *float64      `json:"duration_hours,omitempty"`
	// WorkerRating is the score the worker received from the client.
	WorkerRating  *int   `json:"worker_rating,omitempty"`
	WorkerComment string `json:"worker_comment,omitempty"`
	// ClientRating is the score the client received from the worker.
	ClientRating  *int      `json:"client_rating,omitempty"`
	ClientComment string    `json:"client_comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"-"`
}

// AssignedTo reports whether the job is held by workerID.
func (j Job) AssignedTo(workerID string) bool {
	return j.WorkerID != nil && *j.WorkerID == workerID
}

// Charged reports whether a card payment has been captured.
func (j Job) Charged() bool {
	return j.PaymentReference != ""
}
