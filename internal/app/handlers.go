package app

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dispatch-service/internal/domain"
	"dispatch-service/internal/jobs"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/rating"
)

// GET /api/categories
func (a *App) ListCategoriesHandler(c *gin.Context) {
	cats, err := a.Jobs.Categories(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, cats, "")
}

// POST /api/jobs
func (a *App) CreateJobHandler(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badRequest(err.Error()))
		return
	}

	res, err := a.Jobs.Create(c.Request.Context(), jobs.CreateRequest{
		ClientID:       req.ClientID,
		CategoryID:     req.CategoryID,
		Description:    req.Description,
		Specifications: req.Specifications,
		Location:       req.Location,
		Start:          req.StartTime,
		End:            req.EndTime,
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		AmountCents:    req.AmountCents,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	msg := "job assigned"
	if res.Job.Status == domain.StatusRejected {
		msg = "no worker available for this window"
	}
	respond(c, http.StatusCreated, res.Job, msg, res.Warnings...)
}

// GET /api/jobs/:id
func (a *App) GetJobHandler(c *gin.Context) {
	job, err := a.Jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, job, "")
}

// PUT /api/jobs/:id/status
func (a *App) UpdateJobStatusHandler(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badRequest(err.Error()))
		return
	}
	to, ok := domain.ParseStatus(req.Status)
	if !ok {
		a.fail(c, badRequest("unknown status "+req.Status))
		return
	}

	res, err := a.Jobs.Transition(c.Request.Context(), c.Param("id"), to)
	if err != nil {
		a.fail(c, err)
		return
	}
	if req.Comment != "" {
		a.Log.Info("Status change comment", logger.JobID(res.Job.ID),
			logger.String("subject", Subject(c)), logger.String("comment", req.Comment))
	}
	respond(c, http.StatusOK, res.Job, "job is "+string(res.Job.Status), res.Warnings...)
}

// PUT /api/jobs/:id/payment-status
func (a *App) UpdatePaymentStatusHandler(c *gin.Context) {
	var req paymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badRequest(err.Error()))
		return
	}
	to := domain.PaymentStatus(req.PaymentStatus)
	if to != domain.PaymentIssued && to != domain.PaymentPaid {
		a.fail(c, badRequest("payment_status must be issued or paid"))
		return
	}

	res, err := a.Jobs.SetPaymentStatus(c.Request.Context(), c.Param("id"), to)
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, res.Job, "payment is "+string(to))
}

// PUT /api/jobs/:id/rating
func (a *App) RateJobHandler(c *gin.Context) {
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badRequest(err.Error()))
		return
	}
	raterID, err := a.caller(c, req.RaterID)
	if err != nil {
		a.fail(c, domain.NotPermitted(domain.CodeRatingNotPermitted, err.Error()))
		return
	}

	var rater rating.Rater
	switch req.Rater {
	case "client":
		rater = rating.ByClient{ClientID: raterID}
	case "worker":
		rater = rating.ByWorker{WorkerID: raterID}
	default:
		a.fail(c, badRequest("rater must be client or worker"))
		return
	}

	res, err := a.Jobs.Rate(c.Request.Context(), c.Param("id"), rater, req.Score, req.Comment)
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, res.Job, "rating recorded")
}

// GET /api/clients/:id/jobs?status=a,b
func (a *App) ListClientJobsHandler(c *gin.Context) {
	statuses, err := statusFilter(c.Query("status"))
	if err != nil {
		a.fail(c, err)
		return
	}
	list, err := a.Jobs.ListForClient(c.Request.Context(), c.Param("id"), statuses...)
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, nonNil(list), "")
}

// GET /api/workers/:id/jobs?status=a,b
func (a *App) ListWorkerJobsHandler(c *gin.Context) {
	statuses, err := statusFilter(c.Query("status"))
	if err != nil {
		a.fail(c, err)
		return
	}
	list, err := a.Jobs.ListForWorker(c.Request.Context(), c.Param("id"), statuses...)
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, nonNil(list), "")
}

func statusFilter(q string) ([]domain.Status, error) {
	if q == "" {
		return nil, nil
	}
	var out []domain.Status
	for _, s := range strings.Split(q, ",") {
		st, ok := domain.ParseStatus(strings.TrimSpace(s))
		if !ok {
			return nil, badRequest("unknown status " + s)
		}
		out = append(out, st)
	}
	return out, nil
}

func nonNil(list []domain.Job) []domain.Job {
	if list == nil {
		return []domain.Job{}
	}
	return list
}
