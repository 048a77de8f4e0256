// README: Base handler utilities (JSON helpers, error-to-status mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"riderhub/internal/fleet"
	"riderhub/internal/modules/delivery"
	"riderhub/internal/modules/dispatch"
	"riderhub/internal/modules/rider"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps core errors to transport status codes. Client
// errors carry their message; transport and internal failures return a
// generic message so provider internals never leak.
func writeDomainError(c *gin.Context, err error) {
	var invalid *rider.InvalidTransitionError
	var rejection *fleet.RejectionError
	switch {
	case errors.Is(err, rider.ErrNotFound), errors.Is(err, delivery.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, rider.ErrConflict), errors.As(err, &invalid), errors.Is(err, delivery.ErrTerminal):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, dispatch.ErrBadRequest), errors.Is(err, delivery.ErrExists), errors.As(err, &rejection):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, dispatch.ErrExternalUnavailable):
		writeError(c, http.StatusServiceUnavailable, "temporarily unable to process the request")
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
