package api

import (
	"errors"
	"net/http"

	"sportsbook/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Balance string `json:"balance,omitempty"`
}

func respondError(c *gin.Context, err error) {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"path":   c.FullPath(),
			"status": status,
			"error":  err,
		}).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

func classifyError(err error) (int, errorResponse) {
	var (
		validationErr  *service.ValidationError
		fundsErr       *service.InsufficientFundsError
		fetchErr       *service.ExternalFetchError
		persistenceErr *service.PersistenceError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation_failed", Field: validationErr.Field}
	case errors.As(err, &fundsErr):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "insufficient_funds", Balance: fundsErr.Balance.StringFixed(2)}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"}
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "username_taken"}
	case errors.Is(err, service.ErrConcurrencyConflict):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "concurrency_conflict"}
	case errors.As(err, &fetchErr):
		if fetchErr.Retryable() {
			return http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Code: "score_unavailable"}
		}
		return http.StatusBadGateway, errorResponse{Error: err.Error(), Code: "score_" + string(fetchErr.Kind)}
	case errors.As(err, &persistenceErr):
		return http.StatusInternalServerError, errorResponse{Error: "storage failure", Code: "persistence_failed"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"}
	}
}

func badRequest(c *gin.Context, field, reason string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: reason, Code: "validation_failed", Field: field})
}
