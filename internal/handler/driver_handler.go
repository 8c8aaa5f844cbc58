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

// DriverHandler handles HTTP requests for driver-side trip operations.
type DriverHandler struct {
	service *application.RideService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(service *application.RideService) *DriverHandler {
	return &DriverHandler{service: service}
}

// RegisterRoutes registers all driver routes on the given router group.
func (h *DriverHandler) RegisterRoutes(r *gin.RouterGroup) {
	driver := r.Group("/api/v1/driver")
	{
		driver.GET("/requests", h.NearbyRequests)
		driver.POST("/requests/:id/accept", h.AcceptTrip)
		driver.POST("/requests/:id/counteroffer", h.CreateCounteroffer)
		driver.POST("/trips/:id/start", h.StartTrip)
		driver.GET("/trips/active", h.ActiveTrips)
	}

	admin := r.Group("/api/v1/admin")
	{
		admin.GET("/trips/stats", h.TripStats)
	}
}

// NearbyRequests handles GET /api/v1/driver/requests.
func (h *DriverHandler) NearbyRequests(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		response.BadRequest(c, "invalid lat")
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		response.BadRequest(c, "invalid lng")
		return
	}
	radiusKm, _ := strconv.ParseFloat(c.DefaultQuery("radius_km", "0"), 64)

	result, err := h.service.NearbyRequests(c.Request.Context(), lat, lng, radiusKm)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// AcceptTrip handles POST /api/v1/driver/requests/:id/accept.
func (h *DriverHandler) AcceptTrip(c *gin.Context) {
	driverID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID")
		return
	}

	result, err := h.service.AcceptTrip(c.Request.Context(), driverID, tripID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CreateCounteroffer handles POST /api/v1/driver/requests/:id/counteroffer.
func (h *DriverHandler) CreateCounteroffer(c *gin.Context) {
	driverID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID")
		return
	}

	var req application.CounterofferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateCounteroffer(c.Request.Context(), driverID, tripID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// StartTrip handles POST /api/v1/driver/trips/:id/start.
func (h *DriverHandler) StartTrip(c *gin.Context) {
	driverID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID")
		return
	}

	result, err := h.service.StartTrip(c.Request.Context(), driverID, tripID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ActiveTrips handles GET /api/v1/driver/trips/active.
func (h *DriverHandler) ActiveTrips(c *gin.Context) {
	driverID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.service.ActiveTripsForDriver(c.Request.Context(), driverID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// TripStats handles GET /api/v1/admin/trips/stats.
func (h *DriverHandler) TripStats(c *gin.Context) {
	result, err := h.service.GetTripStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
