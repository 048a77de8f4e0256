// README: Dispatch handlers: responses, delivery states, detail, ban, webhooks.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"riderhub/internal/modules/delivery"
	"riderhub/internal/modules/dispatch"
	"riderhub/internal/types"
)

type DispatchHandler struct {
	dispatch *dispatch.Service
}

func NewDispatchHandler(dispatchSvc *dispatch.Service) *DispatchHandler {
	return &DispatchHandler{dispatch: dispatchSvc}
}

type dispatchResponseRequest struct {
	DispatchRequestID string `json:"dispatch_request_id" binding:"required"`
	Response          string `json:"response" binding:"required"`
}

func (h *DispatchHandler) RecordResponse(c *gin.Context) {
	var req dispatchResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	err := h.dispatch.RecordDispatchResponse(c.Request.Context(), req.DispatchRequestID, dispatch.Response(req.Response))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"dispatch_request_id": req.DispatchRequestID,
		"response":            req.Response,
	})
}

type deliveryStateRequest struct {
	DispatchRequestID string `json:"dispatch_request_id" binding:"required"`
	State             string `json:"state" binding:"required"`
}

func (h *DispatchHandler) RecordDeliveryState(c *gin.Context) {
	var req deliveryStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	err := h.dispatch.RecordDeliveryState(c.Request.Context(), req.DispatchRequestID, delivery.State(req.State))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"dispatch_request_id": req.DispatchRequestID,
		"state":               req.State,
	})
}

func (h *DispatchHandler) Details(c *gin.Context) {
	raw := c.Query("ids")
	if raw == "" {
		writeError(c, http.StatusBadRequest, "missing ids")
		return
	}
	details, err := h.dispatch.DispatchDetails(c.Request.Context(), strings.Split(raw, ","))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(details))
	for _, d := range details {
		out = append(out, gin.H{
			"dispatch_request_id": d.DispatchID,
			"state":               d.State,
			"cancel_reason":       d.CancelReason,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"dispatch_requests": out})
}

type banRequest struct {
	RiderID  int64 `json:"rider_id" binding:"required"`
	IsBanned *bool `json:"is_banned" binding:"required"`
}

func (h *DispatchHandler) Ban(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.dispatch.Ban(c.Request.Context(), req.RiderID, *req.IsBanned); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rider_id": req.RiderID, "is_banned": *req.IsBanned})
}

type createDispatchRequest struct {
	DispatchID      string  `json:"dispatch_id" binding:"required"`
	RiderID         int64   `json:"rider_id" binding:"required"`
	OrderID         string  `json:"order_id" binding:"required"`
	PickupTaskID    string  `json:"pickup_task_id"`
	DeliveryTaskID  string  `json:"delivery_task_id"`
	RelationshipKey string  `json:"pickup_delivery_relationship"`
	PickupLat       float64 `json:"pickup_lat"`
	PickupLng       float64 `json:"pickup_lng"`
	DropoffLat      float64 `json:"dropoff_lat"`
	DropoffLng      float64 `json:"dropoff_lng"`
}

// CreateDispatch is the upstream dispatcher's webhook: the assignment
// decision already made, to be registered and announced to the rider.
func (h *DispatchHandler) CreateDispatch(c *gin.Context) {
	var req createDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	err := h.dispatch.CreateDispatch(c.Request.Context(), dispatch.CreateDispatchCommand{
		DispatchID:      req.DispatchID,
		RiderID:         req.RiderID,
		OrderID:         req.OrderID,
		PickupTaskID:    req.PickupTaskID,
		DeliveryTaskID:  req.DeliveryTaskID,
		RelationshipKey: req.RelationshipKey,
		Pickup:          types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Dropoff:         types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"dispatch_id": req.DispatchID})
}

type cancelRequest struct {
	DispatchRequestID string `json:"dispatch_request_id" binding:"required"`
	Reason            string `json:"reason" binding:"required"`
}

func (h *DispatchHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.dispatch.CancelDispatch(c.Request.Context(), req.DispatchRequestID, req.Reason); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"dispatch_request_id": req.DispatchRequestID})
}
