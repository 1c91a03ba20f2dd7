// Package v1 provides the public HTTP handlers of the answer service.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
	"github.com/KaanSezen1923/tolkien-rag/internal/service"
)

// UserIDKey is the echo context key holding the authenticated user id.
const UserIDKey = "user_id"

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the authenticated API on g. ask carries the
// middleware that applies only to answering.
func (h *Handler) RegisterRoutes(g *echo.Group, ask ...echo.MiddlewareFunc) {
	g.GET("/ask/:query", h.AskQuery, ask...)
	g.POST("/ask", h.Ask, ask...)

	g.GET("/sessions", h.ListSessions)
	g.POST("/sessions/new", h.CreateSession)
	g.DELETE("/sessions/:session_id", h.DeleteSession)
	g.GET("/sessions/:session_id/messages", h.GetSessionMessages)
	g.PUT("/sessions/:session_id", h.UpdateSession)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func userID(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}

// errorResponse maps service errors onto status codes.
func errorResponse(c echo.Context, err error, extra map[string]interface{}) error {
	status := http.StatusInternalServerError
	body := map[string]interface{}{"error": err.Error()}

	var perr *domain.PipelineError
	switch {
	case errors.As(err, &perr):
		body["kind"] = perr.Kind
		body["stage"] = perr.Stage
		switch perr.Kind {
		case domain.FailureValidation:
			status = http.StatusBadRequest
		case domain.FailureRetrieval, domain.FailureGeneration:
			status = http.StatusBadGateway
		}
		if errors.Is(err, domain.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSessionID), errors.Is(err, domain.ErrEmptyQuery), errors.Is(err, domain.ErrQueryRejected):
		status = http.StatusBadRequest
		body["kind"] = domain.FailureValidation
	}

	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(status, body)
}
