package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/policy"
)

// GetSessionMessages retrieves messages for a session, oldest first.
// GET /v1/chat/sessions/:session_id/messages?limit=&before=
func (h *Handler) GetSessionMessages(c echo.Context) error {
	if err := h.authorize(c, policy.ActionListMessages, ""); err != nil {
		return writeError(c, err)
	}

	page, err := h.service.ListMessages(c.Request().Context(), c.Param("session_id"), queryInt(c, "limit"), c.QueryParam("before"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// PostMessage sends a message into a session.
// POST /v1/chat/sessions/:session_id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	var req domain.PostMessageRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, err)
	}
	if err := h.authorize(c, policy.ActionPostMessage, req.SenderType); err != nil {
		return writeError(c, err)
	}

	msg, err := h.service.PostMessage(c.Request().Context(), c.Param("session_id"), req.Content, domain.SenderType(req.SenderType), req.ReplyToID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// DeleteMessage soft-deletes a message.
// DELETE /v1/chat/messages/:message_id
func (h *Handler) DeleteMessage(c echo.Context) error {
	if err := h.authorize(c, policy.ActionDeleteMessage, ""); err != nil {
		return writeError(c, err)
	}

	msg, err := h.service.SoftDeleteMessage(c.Request().Context(), c.Param("message_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, msg)
}
