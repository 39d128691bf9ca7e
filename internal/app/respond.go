package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch-service/internal/domain"
	"dispatch-service/internal/logger"
)

type response struct {
	Data     any       `json:"data,omitempty"`
	Message  string    `json:"message,omitempty"`
	Warnings []warning `json:"warnings,omitempty"`
}

type warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func respond(c *gin.Context, status int, data any, msg string, warns ...error) {
	resp := response{Data: data, Message: msg}
	for _, w := range warns {
		resp.Warnings = append(resp.Warnings, warning{Code: domain.CodeOf(w), Message: messageOf(w)})
	}
	c.JSON(status, resp)
}

// fail writes err with the status its kind maps to. Internal errors are
// logged and their detail withheld.
func (a *App) fail(c *gin.Context, err error) {
	status := statusOf(err)
	body := errorBody{Kind: domain.KindOf(err).String(), Code: domain.CodeOf(err), Message: messageOf(err)}
	if status == http.StatusInternalServerError {
		a.Log.Error("Request failed", logger.String("path", c.FullPath()), logger.Error(err))
		body.Code = "internal"
		body.Message = "internal error"
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: body})
}

func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotPermitted:
		switch domain.CodeOf(err) {
		case domain.CodeJobNotFound, domain.CodeWorkerNotFound, domain.CodeClientNotFound:
			return http.StatusNotFound
		}
		return http.StatusConflict
	case domain.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageOf(err error) string {
	var e *domain.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func badRequest(msg string) error {
	return domain.Validation(domain.CodeInvalidInput, msg)
}
