package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
)

// ListSessions lists the user's non-empty sessions, most recent first.
// GET /v1/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	sessions, err := h.service.ListSessions(c.Request().Context(), userID(c))
	if err != nil {
		return errorResponse(c, err, nil)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// CreateSession starts an empty session.
// POST /v1/sessions/new
func (h *Handler) CreateSession(c echo.Context) error {
	session, err := h.service.CreateSession(c.Request().Context(), userID(c))
	if err != nil {
		return errorResponse(c, err, nil)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"session_id": session.SessionID,
		"message":    "New session created",
	})
}

// DeleteSession removes a session and its messages.
// DELETE /v1/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.service.DeleteSession(c.Request().Context(), userID(c), c.Param("session_id")); err != nil {
		return errorResponse(c, err, nil)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Session deleted successfully"})
}

// GetSessionMessages returns a session's messages in order.
// GET /v1/sessions/:session_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	messages, err := h.service.ListMessages(c.Request().Context(), userID(c), c.Param("session_id"))
	if err != nil {
		return errorResponse(c, err, nil)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}

type updateSessionRequest struct {
	Messages []domain.Message `json:"messages"`
}

// UpdateSession recomputes the preview from a client-synced message list.
// PUT /v1/sessions/:session_id
func (h *Handler) UpdateSession(c echo.Context) error {
	var req updateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	preview, err := h.service.ReplacePreview(c.Request().Context(), userID(c), c.Param("session_id"), req.Messages)
	if err != nil {
		return errorResponse(c, err, nil)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Session updated successfully",
		"preview": preview,
	})
}
