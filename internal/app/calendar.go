package app

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"dispatch-service/internal/domain"
	"dispatch-service/internal/gcal"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/workers"
)

const googleTokenHeader = "X-Google-Token"

// CalendarOpener opens a worker's external calendar with their token.
type CalendarOpener func(ctx context.Context, tok *oauth2.Token, calendarID string) (workers.BusySource, error)

func notConfigured(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{Error: errorBody{
		Kind: domain.KindExternal.String(), Code: "calendar_not_configured", Message: "Google Calendar not configured",
	}})
}

// GET /api/calendar/auth?worker_id=...
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.OAuth == nil {
		notConfigured(c)
		return
	}
	workerID := c.Query("worker_id")
	if sub := Subject(c); workerID == "" && sub != StaticSubject {
		workerID = sub
	}
	if workerID == "" {
		a.fail(c, badRequest("worker_id required"))
		return
	}
	if _, err := a.Workers.Get(c.Request.Context(), workerID); err != nil {
		a.fail(c, err)
		return
	}
	state, err := a.states.Issue(workerID)
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"auth_url": a.OAuth.AuthURL(state),
		"state":    state,
	}, "")
}

// GET /oauth2callback
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.OAuth == nil {
		notConfigured(c)
		return
	}
	workerID, err := a.states.Verify(c.Query("state"))
	if err != nil {
		a.Log.Warn("OAuth callback with bad state", logger.Error(err))
		a.fail(c, domain.Validation(domain.CodeInvalidOAuthState, "state is missing, expired or not issued by this service"))
		return
	}
	code := c.Query("code")
	if code == "" {
		a.fail(c, badRequest("authorization code required"))
		return
	}

	tok, err := a.OAuth.Exchange(c.Request.Context(), code)
	if err != nil {
		a.fail(c, domain.External(domain.CodeCalendarImportFailed, "failed to exchange code for token", err))
		return
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.Log.Info("Calendar access granted", logger.WorkerID(workerID))
	// The worker keeps the token and presents it when importing.
	respond(c, http.StatusOK, gin.H{
		"worker_id": workerID,
		"token":     string(raw),
	}, "authorization successful")
}

// POST /api/workers/:id/calendar/import?calendar_id=...
func (a *App) ImportCalendarHandler(c *gin.Context) {
	if a.OpenCalendar == nil {
		notConfigured(c)
		return
	}
	tok, err := gcal.ParseToken(c.GetHeader(googleTokenHeader))
	if err != nil {
		a.fail(c, badRequest("Google token required in "+googleTokenHeader+" header"))
		return
	}

	ctx := c.Request.Context()
	src, err := a.OpenCalendar(ctx, tok, c.DefaultQuery("calendar_id", gcal.PrimaryCalendar))
	if err != nil {
		a.fail(c, domain.External(domain.CodeCalendarImportFailed, "failed to open calendar", err))
		return
	}
	res, err := a.Workers.ImportBusy(ctx, c.Param("id"), src)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.Log.Info("Calendar imported", logger.WorkerID(c.Param("id")), logger.String("subject", Subject(c)))
	respond(c, http.StatusOK, res, "calendar imported")
}
