package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/TransPort-Lima/service-rides/internal/application"
	"github.com/TransPort-Lima/service-rides/internal/middleware"
	"github.com/TransPort-Lima/service-rides/internal/response"
)

// TripHandler handles HTTP requests for passenger trip operations.
type TripHandler struct {
	service *application.RideService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(service *application.RideService) *TripHandler {
	return &TripHandler{service: service}
}

// RegisterRoutes registers all trip routes on the given router group.
func (h *TripHandler) RegisterRoutes(r *gin.RouterGroup) {
	trips := r.Group("/api/v1/trips")
	{
		trips.POST("", h.Reserve)
		trips.GET("", h.ListTrips)
		trips.GET("/:id", h.GetTrip)
		trips.POST("/:id/cancel", h.CancelTrip)
		trips.GET("/:id/counteroffers", h.ListCounteroffers)
		trips.POST("/counteroffers/:offerId/accept", h.AcceptCounteroffer)
	}
}

// Reserve handles POST /api/v1/trips.
func (h *TripHandler) Reserve(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error()})
		return
	}

	result, err := h.service.Reserve(c.Request.Context(), userID, req)
	if err != nil {
		// The reservation endpoint reports refusals in-band so the client can
		// show them inline.
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "trip": result})
}

// ListTrips handles GET /api/v1/trips.
func (h *TripHandler) ListTrips(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.service.PassengerTrips(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetTrip handles GET /api/v1/trips/:id.
func (h *TripHandler) GetTrip(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID")
		return
	}

	result, err := h.service.GetTrip(c.Request.Context(), userID, tripID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CancelTrip handles POST /api/v1/trips/:id/cancel.
func (h *TripHandler) CancelTrip(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID")
		return
	}

	var req application.CancelRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.service.CancelTrip(c.Request.Context(), userID, tripID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListCounteroffers handles GET /api/v1/trips/:id/counteroffers.
func (h *TripHandler) ListCounteroffers(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID")
		return
	}

	result, err := h.service.ListCounteroffers(c.Request.Context(), userID, tripID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// AcceptCounteroffer handles POST /api/v1/trips/counteroffers/:offerId/accept.
func (h *TripHandler) AcceptCounteroffer(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	offerID, err := uuid.Parse(c.Param("offerId"))
	if err != nil {
		response.BadRequest(c, "invalid counteroffer ID")
		return
	}

	result, err := h.service.AcceptCounteroffer(c.Request.Context(), userID, offerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
