// README: Rider-facing handlers: availability, status, acceptance rate.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"riderhub/internal/http/middleware"
	"riderhub/internal/modules/dispatch"
)

type RiderHandler struct {
	dispatch *dispatch.Service
}

func NewRiderHandler(dispatchSvc *dispatch.Service) *RiderHandler {
	return &RiderHandler{dispatch: dispatchSvc}
}

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available" binding:"required"`
}

func (h *RiderHandler) UpdateAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	riderID := middleware.RiderID(c)
	if err := h.dispatch.UpdateAvailability(c.Request.Context(), riderID, *req.IsAvailable); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rider_id": riderID, "is_available": *req.IsAvailable})
}

type dispatchableRequest struct {
	IsDispatchable *bool `json:"is_dispatchable" binding:"required"`
}

func (h *RiderHandler) UpdateDispatchable(c *gin.Context) {
	var req dispatchableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	riderID := middleware.RiderID(c)
	if err := h.dispatch.UpdateDispatchable(c.Request.Context(), riderID, *req.IsDispatchable); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rider_id": riderID, "is_dispatchable": *req.IsDispatchable})
}

func (h *RiderHandler) Status(c *gin.Context) {
	riderID := middleware.RiderID(c)
	status, err := h.dispatch.Status(c.Request.Context(), riderID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	label := "not_working"
	if status.Working {
		label = "working"
	}
	writeJSON(c, http.StatusOK, gin.H{
		"status":             label,
		"current_deliveries": status.CurrentDispatches,
	})
}

func (h *RiderHandler) AcceptanceRate(c *gin.Context) {
	riderID := middleware.RiderID(c)
	from, err := time.Parse(time.DateOnly, c.Query("start_at"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid start_at")
		return
	}
	to, err := time.Parse(time.DateOnly, c.Query("end_at"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid end_at")
		return
	}
	rate, err := h.dispatch.AcceptanceRate(c.Request.Context(), riderID, from, to.AddDate(0, 0, 1))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"acceptance_rate": rate})
}
