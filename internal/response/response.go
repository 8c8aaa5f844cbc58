// Package response holds the HTTP response helpers shared by all handlers.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TransPort-Lima/service-rides/internal/domain/shared"
)

// Envelope is the standard JSON body for all API responses.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta carries pagination details for list responses.
type Meta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// Success writes a 200 response with the given payload.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response with the given payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated writes a 200 response with a list payload and pagination meta.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    items,
		Meta:    &Meta{Total: total, Page: page, Limit: limit},
	})
}

// BadRequest writes a 400 response with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Envelope{Success: false, Error: message})
}

// Error maps a domain error to its HTTP status and writes the response.
func Error(c *gin.Context, err error) {
	var (
		validationErr  *shared.ValidationError
		notFoundErr    *shared.NotFoundError
		invalidState   *shared.InvalidStateError
		forbiddenErr   *shared.ForbiddenError
		conflictErr    *shared.ConflictError
		unavailableErr *shared.UnavailableError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, Envelope{Success: false, Error: err.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, Envelope{Success: false, Error: err.Error()})
	case errors.As(err, &invalidState):
		c.JSON(http.StatusConflict, Envelope{Success: false, Error: err.Error()})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, Envelope{Success: false, Error: err.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, Envelope{Success: false, Error: err.Error()})
	case errors.As(err, &unavailableErr):
		c.JSON(http.StatusServiceUnavailable, Envelope{Success: false, Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, Envelope{Success: false, Error: "internal server error"})
	}
}
