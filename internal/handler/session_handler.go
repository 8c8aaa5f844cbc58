package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/TransPort-Lima/service-rides/internal/application"
	"github.com/TransPort-Lima/service-rides/internal/response"
)

// SessionHandler handles HTTP requests for selection sessions.
type SessionHandler struct {
	service *application.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(service *application.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// RegisterRoutes registers all session routes on the given router group.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	sessions := r.Group("/api/v1/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("/:id", h.GetSession)
		sessions.DELETE("/:id", h.DeleteSession)
		sessions.POST("/:id/events", h.ApplyEvent)
		sessions.POST("/:id/search", h.Search)
	}
}

// CreateSession handles POST /api/v1/sessions.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	response.Created(c, h.service.CreateSession())
}

// GetSession handles GET /api/v1/sessions/:id.
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session ID")
		return
	}

	snap, err := h.service.GetSession(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, snap)
}

// DeleteSession handles DELETE /api/v1/sessions/:id.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session ID")
		return
	}
	h.service.RemoveSession(id)
	response.Success(c, gin.H{"deleted": true})
}

// ApplyEvent handles POST /api/v1/sessions/:id/events.
func (h *SessionHandler) ApplyEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session ID")
		return
	}

	var req application.SessionEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	snap, err := h.service.ApplyEvent(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, snap)
}

// Search handles POST /api/v1/sessions/:id/search.
func (h *SessionHandler) Search(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session ID")
		return
	}

	passengers, err := strconv.Atoi(c.DefaultQuery("pasajeros", "1"))
	if err != nil {
		response.BadRequest(c, "invalid pasajeros")
		return
	}

	result, err := h.service.Submit(c.Request.Context(), id, passengers)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
