package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/livechat/policy"
)

// GET /v1/notifications?limit=&unread=
func (h *Handler) ListNotifications(c echo.Context) error {
	if err := h.authorize(c, policy.ActionReadNotifications, ""); err != nil {
		return writeError(c, err)
	}
	notifications, err := h.service.ListNotifications(c.Request().Context(), queryInt(c, "limit"), queryBool(c, "unread"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": notifications,
	})
}

// GET /v1/notifications/unread_count
func (h *Handler) UnreadCount(c echo.Context) error {
	if err := h.authorize(c, policy.ActionReadNotifications, ""); err != nil {
		return writeError(c, err)
	}
	count, err := h.service.CountUnreadNotifications(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": count})
}

// POST /v1/notifications/:notification_id/read
func (h *Handler) MarkNotificationRead(c echo.Context) error {
	if err := h.authorize(c, policy.ActionReadNotifications, ""); err != nil {
		return writeError(c, err)
	}
	n, err := h.service.MarkNotificationRead(c.Request().Context(), c.Param("notification_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, n)
}

// POST /v1/notifications/read_all
func (h *Handler) MarkAllNotificationsRead(c echo.Context) error {
	if err := h.authorize(c, policy.ActionReadNotifications, ""); err != nil {
		return writeError(c, err)
	}
	marked, err := h.service.MarkAllNotificationsRead(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"marked": marked})
}
