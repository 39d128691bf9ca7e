package app

import (
	"time"

	"dispatch-service/internal/calendar"
)

type createJobRequest struct {
	ClientID       string    `json:"client_id" binding:"required"`
	CategoryID     int64     `json:"category_id" binding:"required"`
	Description    string    `json:"description"`
	Specifications string    `json:"specifications"`
	Location       string    `json:"location"`
	StartTime      time.Time `json:"start_time" binding:"required"`
	EndTime        time.Time `json:"end_time" binding:"required"`
	PaymentMethod  string    `json:"payment_method"`
	AmountCents    int64     `json:"amount_cents"`
}

type statusRequest struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment"`
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

type ratingRequest struct {
	Rater   string `json:"rater" binding:"required"`
	RaterID string `json:"rater_id"`
	Score   int    `json:"score" binding:"required"`
	Comment string `json:"comment"`
}

type scheduleRequest struct {
	WeeklyTemplate *calendar.WeeklyTemplate `json:"weekly_template" binding:"required"`
}

type activeRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type availabilityResponse struct {
	WorkerID  string `json:"worker_id"`
	Date      string `json:"date"`
	Window    string `json:"window"`
	Available bool   `json:"available"`
}

type createWorkerRequest struct {
	ID             string                   `json:"id"`
	Name           string                   `json:"name" binding:"required"`
	Email          string                   `json:"email" binding:"omitempty,email"`
	Categories     []int64                  `json:"categories" binding:"required,min=1"`
	WeeklyTemplate *calendar.WeeklyTemplate `json:"weekly_template" binding:"required"`
	Active         bool                     `json:"active"`
}

type profileRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email" binding:"omitempty,email"`
	Categories []int64 `json:"categories"`
}

type createClientRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	PaymentAccount string `json:"payment_account"`
}

type clientUpdateRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email" binding:"omitempty,email"`
	PaymentAccount *string `json:"payment_account"`
}
