package app

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch-service/internal/calendar"
	"dispatch-service/internal/domain"
	"dispatch-service/internal/workers"
)

// GET /api/workers/:id/schedule
func (a *App) GetScheduleHandler(c *gin.Context) {
	sched, err := a.Workers.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, sched, "")
}

// PUT /api/workers/:id/schedule
func (a *App) UpdateScheduleHandler(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, domain.Validation(domain.CodeInvalidTemplate, err.Error()))
		return
	}
	w, err := a.Workers.UpdateSchedule(c.Request.Context(), c.Param("id"), *req.WeeklyTemplate)
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, w, "schedule updated")
}

// PUT /api/workers/:id/active
func (a *App) SetActiveHandler(c *gin.Context) {
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badRequest(err.Error()))
		return
	}
	w, err := a.Workers.SetActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		a.fail(c, err)
		return
	}
	msg := "worker deactivated"
	if w.Active {
		msg = "worker activated"
	}
	respond(c, http.StatusOK, w, msg)
}

// GET /api/workers/:id/availability?date=YYYY-MM-DD&start=HH:MM&end=HH:MM
func (a *App) AvailabilityHandler(c *gin.Context) {
	date, err := time.ParseInLocation(time.DateOnly, c.Query("date"), a.Location)
	if err != nil {
		a.fail(c, domain.Validation(domain.CodeInvalidWindow, "date must be YYYY-MM-DD"))
		return
	}
	start, err := calendar.ParseTimeOfDay(c.Query("start"))
	if err != nil {
		a.fail(c, domain.Validation(domain.CodeInvalidWindow, err.Error()))
		return
	}
	end, err := calendar.ParseTimeOfDay(c.Query("end"))
	if err != nil {
		a.fail(c, domain.Validation(domain.CodeInvalidWindow, err.Error()))
		return
	}

	y, m, d := date.Date()
	from := time.Date(y, m, d, 0, int(start), 0, 0, a.Location)
	to := time.Date(y, m, d, 0, int(end), 0, 0, a.Location)
	ok, err := a.Workers.IsAvailable(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, availabilityResponse{
		WorkerID:  c.Param("id"),
		Date:      date.Format(time.DateOnly),
		Window:    start.String() + "-" + end.String(),
		Available: ok,
	}, "")
}

// POST /api/workers
func (a *App) CreateWorkerHandler(c *gin.Context) {
	var req createWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, calendar.ErrInvalidTemplate) {
			a.fail(c, domain.Validation(domain.CodeInvalidTemplate, err.Error()))
			return
		}
		a.fail(c, badRequest(err.Error()))
		return
	}
	id, err := a.caller(c, req.ID)
	if err != nil {
		a.fail(c, domain.NotPermitted(domain.CodeIdentityMismatch, err.Error()))
		return
	}
	w, err := a.Workers.Create(c.Request.Context(), workers.NewWorker{
		ID:         id,
		Name:       req.Name,
		Email:      req.Email,
		Categories: req.Categories,
		Template:   *req.WeeklyTemplate,
		Active:     req.Active,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, w, "worker registered")
}

// GET /api/workers?q=term,term
func (a *App) ListWorkersHandler(c *gin.Context) {
	var terms []string
	if q := c.Query("q"); q != "" {
		terms = strings.Split(q, ",")
	}
	list, err := a.Workers.List(c.Request.Context(), terms)
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, list, "")
}

// GET /api/workers/:id
func (a *App) GetWorkerHandler(c *gin.Context) {
	p, err := a.Workers.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, p, "")
}

// PUT /api/workers/:id/profile
func (a *App) UpdateProfileHandler(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badRequest(err.Error()))
		return
	}
	w, err := a.Workers.UpdateProfile(c.Request.Context(), c.Param("id"), workers.ProfileUpdate{
		Name:       req.Name,
		Email:      req.Email,
		Categories: req.Categories,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, w, "profile updated")
}
