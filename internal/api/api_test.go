package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/glimpse/internal/assistant"
	"github.com/starford/glimpse/internal/cascade"
	"github.com/starford/glimpse/internal/generate"
	"github.com/starford/glimpse/internal/recordservice"
	"github.com/starford/glimpse/internal/testutil"
)

type stubAsker struct {
	answer *assistant.Answer
	err    error
	query  string
}

func (s *stubAsker) Ask(_ context.Context, query string) (*assistant.Answer, error) {
	s.query = query
	return s.answer, s.err
}

type env struct {
	svc    *recordservice.Service
	asker  *stubAsker
	router http.Handler
}

// testEnv sets up a temp inbox, SQLite DB, service, engine and router.
// An empty authToken disables auth.
func testEnv(t *testing.T, authToken string) *env {
	t.Helper()
	return testEnvWithSSE(t, authToken, nil)
}

func testEnvWithSSE(t *testing.T, authToken string, sseHandler http.Handler) *env {
	t.Helper()
	_, store := testutil.TestInbox(t)
	svc := recordservice.NewService(store, testutil.TestDB(t))
	engine := cascade.NewEngine(svc, cascade.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	asker := &stubAsker{}
	return &env{
		svc:    svc,
		asker:  asker,
		router: NewRouter(svc, engine, asker, authToken != "", authToken, sseHandler),
	}
}

func (e *env) do(t *testing.T, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body = %s", w.Body.String())
	return v
}

func TestCreateAndGetRecord(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/records", map[string]any{
		"id": "r1", "text": "budget report Q3", "app_name": "Numbers", "window_title": "Budget",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, "body = %s", w.Body.String())

	w = e.do(t, http.MethodGet, "/records/r1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	rec := decode[Record](t, w)
	assert.Equal(t, "budget report Q3", rec.Text)
	assert.Equal(t, "Numbers", rec.AppName)
	assert.Equal(t, "r1.txt", rec.Path)
	assert.False(t, rec.Timestamp.IsZero(), "timestamp should default to now")
}

func TestCreateRecord_GeneratedID(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/records", map[string]string{"text": "hello"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, decode[Record](t, w).ID)
}

func TestCreateRecord_Duplicate(t *testing.T) {
	e := testEnv(t, "")
	body := map[string]string{"id": "dup", "text": "a"}

	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/records", body, "").Code)
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/records", body, "").Code)
}

func TestCreateRecord_BadRequests(t *testing.T) {
	e := testEnv(t, "")

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/records", "{not json", "").Code)

	long := map[string]string{"id": strings.Repeat("x", 300), "text": "a"}
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/records", long, "").Code)

	ancient := map[string]any{"text": "a", "timestamp": "1200-01-01T00:00:00Z"}
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/records", ancient, "").Code)
}

func TestDeleteRecord(t *testing.T) {
	e := testEnv(t, "")
	e.do(t, http.MethodPost, "/records", map[string]string{"id": "del", "text": "x"}, "")

	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/records/del", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/records/del", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/records/del", nil, "").Code)
}

func TestListRecords(t *testing.T) {
	e := testEnv(t, "")
	base := time.Now().Add(-time.Hour).UTC()
	for i, app := range []string{"Mail", "Safari", "Mail"} {
		e.do(t, http.MethodPost, "/records", map[string]any{
			"id": fmt.Sprintf("r%d", i), "text": "t", "app_name": app, "timestamp": base.Add(time.Duration(i) * time.Minute),
		}, "")
	}

	resp := decode[RecordListResponse](t, e.do(t, http.MethodGet, "/records?limit=2", nil, ""))
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "r2", resp.Records[0].ID)

	resp = decode[RecordListResponse](t, e.do(t, http.MethodGet, "/records?app=Mail", nil, ""))
	assert.Equal(t, 2, resp.Total)
}

func TestGetRecord_NotFound(t *testing.T) {
	e := testEnv(t, "")
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/records/nope", nil, "").Code)
}

func TestSearchEndpoint(t *testing.T) {
	e := testEnv(t, "")
	e.do(t, http.MethodPost, "/records", map[string]string{"id": "s1", "text": "deploy pipeline failed"}, "")
	e.do(t, http.MethodPost, "/records", map[string]string{"id": "s2", "text": "lunch menu"}, "")

	w := e.do(t, http.MethodGet, "/search?q=pipeline", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[SearchResponse](t, w)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "s1", resp.Results[0].ID)
}

func TestSearchMissingQuery(t *testing.T) {
	e := testEnv(t, "")
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/search", nil, "").Code)
}

func TestBuildContext(t *testing.T) {
	e := testEnv(t, "")
	e.do(t, http.MethodPost, "/records", map[string]any{
		"id": "recent", "text": "budget report Q3", "timestamp": time.Now().Add(-time.Hour),
	}, "")
	e.do(t, http.MethodPost, "/records", map[string]any{
		"id": "old", "text": "holiday photos", "timestamp": time.Now().Add(-30 * 24 * time.Hour),
	}, "")

	w := e.do(t, http.MethodPost, "/context", QueryRequest{Query: "budget"}, "")
	require.Equal(t, http.StatusOK, w.Code, "body = %s", w.Body.String())

	resp := decode[ContextResponse](t, w)
	require.Len(t, resp.Context.Immediate, 1)
	assert.Equal(t, "recent", resp.Context.Immediate[0].ID)
	assert.Empty(t, resp.Context.Thematic)
	assert.Equal(t, 1.0, resp.Context.RelevanceScores["recent"])
	assert.Contains(t, resp.Rendered, `"budget report Q3"`)
}

func TestBuildContext_EmptyCorpus(t *testing.T) {
	e := testEnv(t, "")

	resp := decode[ContextResponse](t, e.do(t, http.MethodPost, "/context", QueryRequest{Query: "anything"}, ""))
	assert.Equal(t, cascade.NoContextMessage, resp.Rendered)
}

func TestAsk(t *testing.T) {
	e := testEnv(t, "")
	c := cascade.Assemble(nil, "q", time.Now())
	c.TotalTokensEstimate = 7
	e.asker.answer = &assistant.Answer{Text: "forty-two", Context: c}

	w := e.do(t, http.MethodPost, "/ask", QueryRequest{Query: "meaning?"}, "")
	require.Equal(t, http.StatusOK, w.Code, "body = %s", w.Body.String())

	resp := decode[AskResponse](t, w)
	assert.Equal(t, "forty-two", resp.Answer)
	assert.True(t, resp.ContextEmpty)
	assert.Equal(t, 7, resp.TotalTokensEstimate)
	assert.Equal(t, "meaning?", e.asker.query)
}

func TestAsk_EmptyQuery(t *testing.T) {
	e := testEnv(t, "")
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/ask", QueryRequest{Query: "  "}, "").Code)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestAsk_GeneratorErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing credential", fmt.Errorf("assistant: generate: %w", generate.ErrMissingCredential), http.StatusServiceUnavailable},
		{"transport", &generate.TransportError{Err: errors.New("refused")}, http.StatusBadGateway},
		{"status", &generate.StatusError{Code: 500, Body: "x"}, http.StatusBadGateway},
		{"decode", &generate.DecodeError{Err: errors.New("eof")}, http.StatusBadGateway},
		{"empty", generate.ErrEmptyResult, http.StatusBadGateway},
		{"deadline", fmt.Errorf("assistant: generate: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"client timeout", fmt.Errorf("assistant: generate: %w",
			&generate.TransportError{Err: fmt.Errorf("post: %w", context.DeadlineExceeded)}), http.StatusGatewayTimeout},
		{"network timeout", &generate.TransportError{Err: timeoutErr{}}, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEnv(t, "")
			e.asker.err = tt.err
			w := e.do(t, http.MethodPost, "/ask", QueryRequest{Query: "q"}, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := testEnv(t, "secret123")
	w := e.do(t, http.MethodPost, "/records", map[string]string{"text": "x"}, "secret123")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, "secret123")
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/records", nil, "").Code)
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, "secret123")
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/context", QueryRequest{}, "wrong").Code)
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := testEnv(t, "")
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/records", nil, "").Code)
}

// blockingSSE writes stream headers and blocks until the client goes away.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := testEnvWithSSE(t, "secret", blockingSSE)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/events", nil, "").Code)
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := testEnvWithSSE(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
