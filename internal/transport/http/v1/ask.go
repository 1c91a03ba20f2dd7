package v1

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
)

// AskQuery answers the query in the path.
// GET /v1/ask/:query?session_id=&request_id=
func (h *Handler) AskQuery(c echo.Context) error {
	query := c.Param("query")
	// Echo routes on the raw path only when it differs from the decoded one;
	// params are still escaped in that case.
	if c.Request().URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(query); err == nil {
			query = unescaped
		}
	}
	return h.answer(c, domain.AnswerRequest{
		Query:     query,
		SessionID: c.QueryParam("session_id"),
		RequestID: c.QueryParam("request_id"),
	})
}

// Ask answers a JSON request.
// POST /v1/ask
func (h *Handler) Ask(c echo.Context) error {
	var req domain.AnswerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	return h.answer(c, req)
}

func (h *Handler) answer(c echo.Context, req domain.AnswerRequest) error {
	req.UserID = userID(c)

	result, err := h.service.AnswerQuery(c.Request().Context(), req)
	if err != nil {
		var extra map[string]interface{}
		if result != nil {
			extra = map[string]interface{}{"result": result}
		}
		return errorResponse(c, err, extra)
	}
	return c.JSON(http.StatusOK, result)
}
