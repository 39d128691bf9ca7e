package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch-service/internal/clients"
	"dispatch-service/internal/domain"
)

// POST /api/clients
func (a *App) RegisterClientHandler(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badRequest(err.Error()))
		return
	}
	id, err := a.caller(c, req.ID)
	if err != nil {
		a.fail(c, domain.NotPermitted(domain.CodeIdentityMismatch, err.Error()))
		return
	}
	cl, err := a.Clients.Register(c.Request.Context(), clients.NewClient{
		ID:             id,
		Name:           req.Name,
		Email:          req.Email,
		PaymentAccount: req.PaymentAccount,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, cl, "client registered")
}

// GET /api/clients/:id
func (a *App) GetClientHandler(c *gin.Context) {
	cl, err := a.Clients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, cl, "")
}

// PUT /api/clients/:id
func (a *App) UpdateClientHandler(c *gin.Context) {
	var req clientUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badRequest(err.Error()))
		return
	}
	cl, err := a.Clients.Update(c.Request.Context(), c.Param("id"), clients.ClientUpdate{
		Name:           req.Name,
		Email:          req.Email,
		PaymentAccount: req.PaymentAccount,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, cl, "client updated")
}
