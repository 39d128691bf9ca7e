// Package notify delivers job events to clients and workers. Delivery is fire
// and forget: failures are logged and never reach the caller.
package notify

import (
	"context"
	"sync"
	"time"

	"dispatch-service/internal/logger"
)

// Kind names the event a user is told about.
type Kind string

const (
	KindJobAssigned      Kind = "job_assigned"
	KindJobReassigned    Kind = "job_reassigned"
	KindJobRejected      Kind = "job_rejected"
	KindJobAccepted      Kind = "job_accepted"
	KindJobStarted       Kind = "job_started"
	KindJobCompleted     Kind = "job_completed"
	KindJobCancelled     Kind = "job_cancelled"
	KindPaymentStatus    Kind = "payment_status_changed"
	KindRatingReceived   Kind = "rating_received"
	KindWorkerUnassigned Kind = "worker_unassigned"
)

// Notification is one message to one user.
type Notification struct {
	UserID string    `json:"user_id"`
	JobID  string    `json:"job_id"`
	Kind   Kind      `json:"kind"`
	SentAt time.Time `json:"sent_at"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Log writes notifications to the logger. Used when Redis is not configured.
type Log struct {
	Logger logger.Logger
}

func (l Log) Notify(_ context.Context, n Notification) {
	l.Logger.Info("Notification",
		logger.String("user_id", n.UserID),
		logger.JobID(n.JobID),
		logger.String("kind", string(n.Kind)),
	)
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, x := range m {
		x.Notify(ctx, n)
	}
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	Sent []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, n)
}

// To returns the kinds sent to userID, in order.
func (r *Recorder) To(userID string) []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Kind
	for _, n := range r.Sent {
		if n.UserID == userID {
			out = append(out, n.Kind)
		}
	}
	return out
}
