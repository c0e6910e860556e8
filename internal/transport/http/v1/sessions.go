package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/policy"
)

// CreateSession opens the chat session of a guest, or returns the one it already has.
// POST /v1/chat/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	if err := h.authorize(c, policy.ActionCreateSession, ""); err != nil {
		return writeError(c, err)
	}
	var req domain.CreateSessionRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, err)
	}

	session, created, err := h.service.CreateOrGetSession(c.Request().Context(), req.GuestID, req.GuestName)
	if err != nil {
		return writeError(c, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, session)
}

// ListSessions lists sessions for the admin console.
// GET /v1/chat/sessions?limit=&active=
func (h *Handler) ListSessions(c echo.Context) error {
	if err := h.authorize(c, policy.ActionListSessions, ""); err != nil {
		return writeError(c, err)
	}
	sessions, err := h.service.ListSessions(c.Request().Context(), queryInt(c, "limit"), queryBool(c, "active"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// GET /v1/chat/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	if err := h.authorize(c, policy.ActionGetSession, ""); err != nil {
		return writeError(c, err)
	}
	session, err := h.service.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// UpdateSession renames the guest or toggles the active flag. Only admins may toggle.
// PATCH /v1/chat/sessions/:session_id
func (h *Handler) UpdateSession(c echo.Context) error {
	var req domain.UpdateSessionRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, err)
	}
	action := policy.ActionRenameSession
	if req.IsActive != nil {
		action = policy.ActionUpdateSession
	}
	if err := h.authorize(c, action, ""); err != nil {
		return writeError(c, err)
	}

	session, err := h.service.UpdateSession(c.Request().Context(), c.Param("session_id"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// DeleteSession hard-deletes a session and its messages. Repeating it is harmless.
// DELETE /v1/chat/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.authorize(c, policy.ActionDeleteSession, ""); err != nil {
		return writeError(c, err)
	}
	removed, err := h.service.DeleteSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": c.Param("session_id"),
		"removed":    removed,
	})
}

// MarkSeen records that one party viewed the session.
// POST /v1/chat/sessions/:session_id/seen
func (h *Handler) MarkSeen(c echo.Context) error {
	var req domain.SeenRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, err)
	}
	if err := h.authorize(c, policy.ActionSeen, req.SenderType); err != nil {
		return writeError(c, err)
	}

	session, err := h.service.UpdateSeen(c.Request().Context(), c.Param("session_id"), domain.SenderType(req.SenderType))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// SetTyping relays a typing signal.
// POST /v1/chat/sessions/:session_id/typing
func (h *Handler) SetTyping(c echo.Context) error {
	var req domain.TypingRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, err)
	}
	if err := h.authorize(c, policy.ActionTyping, req.SenderType); err != nil {
		return writeError(c, err)
	}

	if err := h.service.SetTyping(c.Request().Context(), c.Param("session_id"), domain.SenderType(req.SenderType), req.IsTyping); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}
