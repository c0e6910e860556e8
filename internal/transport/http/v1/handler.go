// Package v1 provides the public chat HTTP API.
package v1

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/livechat/internal/auth"
	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/service"
	"github.com/xiaot623/livechat/policy"
)

// RoleHeader declares the caller role when admin tokens are not verified.
const RoleHeader = "X-Chat-Role"

// Handler handles HTTP requests.
type Handler struct {
	service  *service.Service
	policy   *policy.Engine
	verifier *auth.Verifier
	validate *validator.Validate
}

// NewHandler creates a new handler. A nil policy engine allows every call.
func NewHandler(service *service.Service, engine *policy.Engine, verifier *auth.Verifier) *Handler {
	return &Handler{
		service:  service,
		policy:   engine,
		verifier: verifier,
		validate: validator.New(),
	}
}

// RegisterRoutes registers external routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Sessions
	e.POST("/v1/chat/sessions", h.CreateSession)
	e.GET("/v1/chat/sessions", h.ListSessions)
	e.GET("/v1/chat/sessions/:session_id", h.GetSession)
	e.PATCH("/v1/chat/sessions/:session_id", h.UpdateSession)
	e.DELETE("/v1/chat/sessions/:session_id", h.DeleteSession)
	e.POST("/v1/chat/sessions/:session_id/seen", h.MarkSeen)
	e.POST("/v1/chat/sessions/:session_id/typing", h.SetTyping)

	// Messages
	e.GET("/v1/chat/sessions/:session_id/messages", h.GetSessionMessages)
	e.POST("/v1/chat/sessions/:session_id/messages", h.PostMessage)
	e.DELETE("/v1/chat/messages/:message_id", h.DeleteMessage)

	// Notifications
	e.GET("/v1/notifications", h.ListNotifications)
	e.GET("/v1/notifications/unread_count", h.UnreadCount)
	e.POST("/v1/notifications/read_all", h.MarkAllNotificationsRead)
	e.POST("/v1/notifications/:notification_id/read", h.MarkNotificationRead)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// callerRole resolves the role of the request. With token verification on,
// only a valid admin bearer token makes an admin.
func (h *Handler) callerRole(c echo.Context) string {
	if h.verifier.Enabled() {
		if _, err := h.verifier.Verify(c.Request().Header.Get(echo.HeaderAuthorization)); err == nil {
			return auth.RoleAdmin
		}
		return string(domain.SenderTypeGuest)
	}
	if strings.EqualFold(strings.TrimSpace(c.Request().Header.Get(RoleHeader)), auth.RoleAdmin) {
		return auth.RoleAdmin
	}
	return string(domain.SenderTypeGuest)
}

// authorize checks action against the policy for the caller.
func (h *Handler) authorize(c echo.Context, action, senderType string) error {
	if h.policy == nil {
		return nil
	}
	allowed, err := h.policy.Allow(c.Request().Context(), policy.Input{
		Action:     action,
		Role:       h.callerRole(c),
		SenderType: senderType,
	})
	if err != nil {
		log.Printf("Policy evaluation failed for %s: %v", action, err)
		return err
	}
	if !allowed {
		return domain.ErrForbidden
	}
	return nil
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

// bind decodes and validates a JSON body.
func (h *Handler) bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return &badRequestError{msg: "invalid request body"}
	}
	if err := h.validate.Struct(req); err != nil {
		return &badRequestError{msg: err.Error()}
	}
	return nil
}

func queryInt(c echo.Context, name string) int {
	val, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return val
}

func queryBool(c echo.Context, name string) bool {
	val, err := strconv.ParseBool(c.QueryParam(name))
	return err == nil && val
}

// writeError maps service errors to HTTP responses.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	var badRequest *badRequestError
	switch {
	case errors.As(err, &badRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrGuestIDRequired),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrContentTooLong),
		errors.Is(err, domain.ErrInvalidSenderType),
		errors.Is(err, domain.ErrInvalidNotificationType),
		errors.Is(err, domain.ErrTitleRequired):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("Request %s %s failed: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
