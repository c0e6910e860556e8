// Package internalapi provides HTTP handlers for trusted internal callers.
// These APIs are only reachable from back-office services on the internal port.
package internalapi

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/service"
)

// Stats reports realtime transport counters.
type Stats interface {
	GetConnectionCount() int
	GetRoomCount() int
}

// Handler handles internal HTTP requests.
type Handler struct {
	service  *service.Service
	stats    Stats
	validate *validator.Validate
}

// NewHandler creates a new internal API handler.
func NewHandler(service *service.Service, stats Stats) *Handler {
	return &Handler{
		service:  service,
		stats:    stats,
		validate: validator.New(),
	}
}

// RegisterRoutes registers internal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/internal/notifications", h.CreateNotification)
	e.GET("/health", h.Health)
}

// CreateNotification is called by comment, contact and application flows
// after their own write has committed.
// POST /internal/notifications
func (h *Handler) CreateNotification(c echo.Context) error {
	var req domain.NotifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	n, err := h.service.Notify(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidNotificationType) || errors.Is(err, domain.ErrTitleRequired) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, n)
}

// Health returns health status with transport counters.
func (h *Handler) Health(c echo.Context) error {
	resp := map[string]interface{}{"status": "healthy"}
	if h.stats != nil {
		resp["connections"] = h.stats.GetConnectionCount()
		resp["rooms"] = h.stats.GetRoomCount()
	}
	return c.JSON(http.StatusOK, resp)
}
