package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaanSezen1923/tolkien-rag/internal/adapter/embedding"
	"github.com/KaanSezen1923/tolkien-rag/internal/adapter/imagegen"
	"github.com/KaanSezen1923/tolkien-rag/internal/adapter/llm"
	"github.com/KaanSezen1923/tolkien-rag/internal/adapter/objectstore"
	"github.com/KaanSezen1923/tolkien-rag/internal/adapter/vectorindex"
	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
	"github.com/KaanSezen1923/tolkien-rag/internal/service"
	"github.com/KaanSezen1923/tolkien-rag/tests/helpers"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	svc := service.New(service.Deps{
		Ledger:    helpers.NewTestSQLiteStore(t),
		Encoder:   embedding.NewMockEncoder(2048),
		Retriever: vectorindex.NewMemoryIndex(embedding.MockDimension),
		LLM:       llm.NewTextGenerator(llm.NewMockClient(), "mock"),
		Images:    imagegen.NewMockGenerator(),
		Uploader:  objectstore.NewMemoryStore("http://localhost:8080/artifacts"),
	})
	return NewHandler(svc)
}

func newContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(UserIDKey, "u1")
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestAskQuery(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)

	c, rec := newContext(e, http.MethodGet, "/v1/ask/Who%20is%20Frodo%3F", "")
	c.SetParamNames("query")
	c.SetParamValues("Who is Frodo?")

	if err := h.AskQuery(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.AnswerResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, strings.HasPrefix(result.Text, "[MOCK]"))
	assert.NotEmpty(t, result.SessionID)
	if assert.NotNil(t, result.Image) {
		assert.True(t, strings.HasPrefix(*result.Image, "http://localhost:8080/artifacts/"))
	}
}

func TestAskQueryKeepsPercentLiterals(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "escaped percent", target: "/v1/ask/What%20is%20100%2541", want: "What is 100%41"},
		{name: "escaped slash", target: "/v1/ask/Rohan%2FGondor%20border", want: "Rohan/Gondor border"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			g := e.Group("/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
				return func(c echo.Context) error {
					c.Set(UserIDKey, "u1")
					return next(c)
				}
			})
			newTestHandler(t).RegisterRoutes(g)

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var result domain.AnswerResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

			rec = httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+result.SessionID+"/messages", nil))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			messages, _ := decode(t, rec)["messages"].([]interface{})
			require.Len(t, messages, 2)
			assert.Equal(t, tt.want, messages[0].(map[string]interface{})["content"])
		})
	}
}

func TestAskValidation(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "blank query", body: `{"query":"   "}`},
		{name: "bad session", body: `{"query":"Who is Sam?","session_id":"sess_1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(e, http.MethodPost, "/v1/ask", tt.body)
			if err := h.Ask(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			body := decode(t, rec)
			assert.Equal(t, "validation", body["kind"])
			assert.Equal(t, "START", body["stage"])
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)

	c, rec := newContext(e, http.MethodPost, "/v1/sessions/new", "")
	require.NoError(t, h.CreateSession(c))
	require.Equal(t, http.StatusOK, rec.Code)
	sessionID, _ := decode(t, rec)["session_id"].(string)
	require.NotEmpty(t, sessionID)

	// Empty sessions are not listed.
	c, rec = newContext(e, http.MethodGet, "/v1/sessions", "")
	require.NoError(t, h.ListSessions(c))
	assert.Empty(t, decode(t, rec)["sessions"])

	c, rec = newContext(e, http.MethodPost, "/v1/ask", `{"query":"Who is Sam?","session_id":"`+sessionID+`"}`)
	require.NoError(t, h.Ask(c))
	require.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(e, http.MethodGet, "/v1/sessions/"+sessionID+"/messages", "")
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID)
	require.NoError(t, h.GetSessionMessages(c))
	messages, _ := decode(t, rec)["messages"].([]interface{})
	assert.Len(t, messages, 2)

	c, rec = newContext(e, http.MethodGet, "/v1/sessions", "")
	require.NoError(t, h.ListSessions(c))
	sessions, _ := decode(t, rec)["sessions"].([]interface{})
	require.Len(t, sessions, 1)
	assert.Equal(t, "Who is Sam?", sessions[0].(map[string]interface{})["preview"])

	c, rec = newContext(e, http.MethodPut, "/v1/sessions/"+sessionID,
		`{"messages":[{"type":"bot","content":"hi"},{"type":"user","content":"Tell me of Samwise"}]}`)
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID)
	require.NoError(t, h.UpdateSession(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tell me of Samwise", decode(t, rec)["preview"])

	for _, want := range []int{http.StatusOK, http.StatusNotFound} {
		c, rec = newContext(e, http.MethodDelete, "/v1/sessions/"+sessionID, "")
		c.SetParamNames("session_id")
		c.SetParamValues(sessionID)
		require.NoError(t, h.DeleteSession(c))
		assert.Equal(t, want, rec.Code)
	}
}

func TestErrorResponseStatus(t *testing.T) {
	e := echo.New()
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewPipelineError(domain.FailureValidation, domain.StageStart, domain.ErrEmptyQuery), http.StatusBadRequest},
		{domain.NewPipelineError(domain.FailureRetrieval, domain.StageRetrieving, errors.New("down")), http.StatusBadGateway},
		{domain.NewPipelineError(domain.FailureGeneration, domain.StageGeneratingAnswer, errors.New("quota")), http.StatusBadGateway},
		{domain.NewPipelineError(domain.FailurePersistence, domain.StagePersisting, errors.New("locked")), http.StatusInternalServerError},
		{domain.ErrSessionNotFound, http.StatusNotFound},
		{domain.ErrInvalidSessionID, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		c, rec := newContext(e, http.MethodGet, "/", "")
		require.NoError(t, errorResponse(c, tt.err, nil))
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
	}
}
