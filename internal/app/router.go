// Package app is the HTTP surface of the dispatch service.
package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"dispatch-service/internal/clients"
	"dispatch-service/internal/gcal"
	"dispatch-service/internal/jobs"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/workers"
)

type App struct {
	Jobs    *jobs.Service
	Workers *workers.Service
	Clients *clients.Service
	// OAuth is nil when Google Calendar is not configured.
	OAuth        *gcal.OAuth
	OpenCalendar CalendarOpener
	Metrics      *metrics.Metrics
	Log          logger.Logger
	Location     *time.Location

	states *stateSigner
}

// AuthConfig selects the credentials AuthMiddleware accepts.
type AuthConfig struct {
	JWTSecret    string
	StaticTokens []string
}

// NewRouter mounts every route. Health, metrics and the OAuth callback are
// public; everything under /api needs a bearer token.
func NewRouter(a *App, auth AuthConfig) *gin.Engine {
	if a.Log == nil {
		a.Log = logger.NewNop()
	}
	if a.Location == nil {
		a.Location = time.UTC
	}
	if a.OpenCalendar == nil && a.OAuth != nil {
		a.OpenCalendar = func(ctx context.Context, tok *oauth2.Token, calendarID string) (workers.BusySource, error) {
			return a.OAuth.Source(ctx, tok, calendarID)
		}
	}
	a.states = newStateSigner(auth.JWTSecret)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(a.Log), a.Metrics.Middleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(a.Metrics.Handler()))
	router.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	api := router.Group("/api", AuthMiddleware(auth.JWTSecret, auth.StaticTokens))
	{
		api.GET("/categories", a.ListCategoriesHandler)
		api.GET("/calendar/auth", a.GoogleAuthHandler)

		jobRoutes := api.Group("/jobs")
		{
			jobRoutes.POST("", a.CreateJobHandler)
			jobRoutes.GET("/:id", a.GetJobHandler)
			jobRoutes.PUT("/:id/status", a.UpdateJobStatusHandler)
			jobRoutes.PUT("/:id/payment-status", a.UpdatePaymentStatusHandler)
			jobRoutes.PUT("/:id/rating", a.RateJobHandler)
		}

		clientRoutes := api.Group("/clients")
		{
			clientRoutes.POST("", a.RegisterClientHandler)
			clientRoutes.GET("/:id", a.GetClientHandler)
			clientRoutes.PUT("/:id", a.UpdateClientHandler)
			clientRoutes.GET("/:id/jobs", a.ListClientJobsHandler)
		}

		workerRoutes := api.Group("/workers")
		{
			workerRoutes.POST("", a.CreateWorkerHandler)
			workerRoutes.GET("", a.ListWorkersHandler)
			workerRoutes.GET("/:id", a.GetWorkerHandler)
			workerRoutes.PUT("/:id/profile", a.UpdateProfileHandler)
			workerRoutes.GET("/:id/jobs", a.ListWorkerJobsHandler)
			workerRoutes.GET("/:id/schedule", a.GetScheduleHandler)
			workerRoutes.PUT("/:id/schedule", a.UpdateScheduleHandler)
			workerRoutes.PUT("/:id/active", a.SetActiveHandler)
			workerRoutes.GET("/:id/availability", a.AvailabilityHandler)
			workerRoutes.POST("/:id/calendar/import", a.ImportCalendarHandler)
		}
	}
	return router
}

// LoggerMiddleware writes one structured line per request.
func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			msgs := make([]string, len(c.Errors))
			for i, err := range c.Errors {
				msgs[i] = err.Err.Error()
			}
			fields = append(fields, logger.Strings("errors", msgs))
			log.Error("HTTP request with errors", fields...)
			return
		}
		if strings.HasPrefix(path, "/health") || path == "/metrics" {
			log.Debug("HTTP request", fields...)
			return
		}
		log.Info("HTTP request", fields...)
	}
}
