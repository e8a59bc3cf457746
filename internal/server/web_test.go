package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxreader/internal/outlook"
)

func serve(t *testing.T, ws *WebServer, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, jsonBody(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

func TestWebServer_Index(t *testing.T) {
	ws := NewWebServer(newTestServerContext(t, newFakeGraph(t), ""), nil, "")

	rec := serve(t, ws, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/api/set-token")
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
	assert.Equal(t, DefaultWebAddr, ws.Addr())
}

func TestWebServer_UnknownPath(t *testing.T) {
	ws := NewWebServer(newTestServerContext(t, newFakeGraph(t), ""), nil, "")

	rec := serve(t, ws, http.MethodGet, "/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebServer_RequestIDPropagated(t *testing.T) {
	ws := NewWebServer(newTestServerContext(t, newFakeGraph(t), ""), nil, "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, "req-123")
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(headerRequestID))
}

func TestWebServer_ListEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantQuery []string
	}{
		{
			name:      "inbox",
			target:    "/api/inbox",
			wantQuery: []string{"$top=20", "$orderby=receivedDateTime%20desc"},
		},
		{
			name:      "unread",
			target:    "/api/unread",
			wantQuery: []string{"$filter=isRead%20eq%20false", "$top=50"},
		},
		{
			name:      "since default",
			target:    "/api/since",
			wantQuery: []string{"receivedDateTime%20ge%202024-01-08T12%3A00%3A00Z", "$top=20"},
		},
		{
			name:      "since explicit days",
			target:    "/api/since?days=3",
			wantQuery: []string{"receivedDateTime%20ge%202024-01-12T12%3A00%3A00Z"},
		},
		{
			name:      "search",
			target:    "/api/search?q=quarterly+report",
			wantQuery: []string{"$search=", "quarterly%20report", "$top=20"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGraph(t)
			ws := NewWebServer(newTestServerContext(t, g, goodToken), nil, "")

			rec := serve(t, ws, http.MethodGet, tt.target, "")

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var records []outlook.EmailRecord
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
			require.Len(t, records, 1)
			assert.Equal(t, "bob@example.com", records[0].From)
			assert.Equal(t, "Bob", records[0].FromName)
			assert.False(t, records[0].IsRead)
			assert.True(t, records[0].HasAttachments)

			for _, want := range tt.wantQuery {
				assert.Contains(t, g.lastQuery(), want)
			}
		})
	}
}

func TestWebServer_RecordJSONShape(t *testing.T) {
	ws := NewWebServer(newTestServerContext(t, newFakeGraph(t), goodToken), nil, "")

	rec := serve(t, ws, http.MethodGet, "/api/inbox", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw, 1)
	for _, key := range []string{"from", "from_name", "subject", "date", "body_preview", "is_read", "has_attachments"} {
		assert.Contains(t, raw[0], key)
	}
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestWebServer_Unauthenticated(t *testing.T) {
	for _, target := range []string{"/api/inbox", "/api/unread", "/api/since", "/api/search?q=x", "/api/search"} {
		t.Run(target, func(t *testing.T) {
			g := newFakeGraph(t)
			ws := NewWebServer(newTestServerContext(t, g, ""), nil, "")

			rec := serve(t, ws, http.MethodGet, target, "")

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Not authenticated. Please set your access token.", decodeError(t, rec))
			assert.Zero(t, g.requestCount(), "no Graph request without a credential")
		})
	}
}

func TestWebServer_Errors(t *testing.T) {
	tests := []struct {
		name        string
		token       string
		graphStatus int
		target      string
		wantStatus  int
		wantError   string
	}{
		{
			name:        "expired token",
			token:       "stale-token",
			graphStatus: http.StatusOK,
			target:      "/api/inbox",
			wantStatus:  http.StatusUnauthorized,
			wantError:   "Token expired or invalid",
		},
		{
			name:        "empty search",
			token:       goodToken,
			graphStatus: http.StatusOK,
			target:      "/api/search?q=%20%20",
			wantStatus:  http.StatusBadRequest,
			wantError:   "Search query is empty",
		},
		{
			name:        "graph failure",
			token:       goodToken,
			graphStatus: http.StatusServiceUnavailable,
			target:      "/api/unread",
			wantStatus:  http.StatusBadGateway,
			wantError:   "Microsoft Graph error: The server is busy.",
		},
		{
			name:        "bad days",
			token:       goodToken,
			graphStatus: http.StatusOK,
			target:      "/api/since?days=-1",
			wantStatus:  http.StatusBadRequest,
			wantError:   msgBadDays,
		},
		{
			name:        "days beyond a year",
			token:       goodToken,
			graphStatus: http.StatusOK,
			target:      "/api/since?days=200000",
			wantStatus:  http.StatusBadRequest,
			wantError:   msgBadDays,
		},
		{
			name:        "non numeric days",
			token:       goodToken,
			graphStatus: http.StatusOK,
			target:      "/api/since?days=week",
			wantStatus:  http.StatusBadRequest,
			wantError:   msgBadDays,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGraph(t)
			g.setStatus(tt.graphStatus)
			ws := NewWebServer(newTestServerContext(t, g, tt.token), nil, "")

			rec := serve(t, ws, http.MethodGet, tt.target, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decodeError(t, rec))
		})
	}
}

func TestWebServer_SetToken(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantSuccess bool
		wantError   string
		wantAuth    bool
	}{
		{
			name:        "valid token",
			body:        `{"token":"  good-token\n"}`,
			wantStatus:  http.StatusOK,
			wantSuccess: true,
			wantAuth:    true,
		},
		{
			name:       "empty token",
			body:       `{"token":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Token is empty",
		},
		{
			name:       "rejected token",
			body:       `{"token":"bad-token"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid token or no internet connection",
		},
		{
			name:       "malformed body",
			body:       `{"token":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := newTestServerContext(t, newFakeGraph(t), "")
			ws := NewWebServer(sc, nil, "")

			rec := serve(t, ws, http.MethodPost, "/api/set-token", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp setTokenResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantSuccess, resp.Success)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantAuth, sc.Authenticated())
		})
	}
}

func TestWebServer_SetTokenThenList(t *testing.T) {
	ws := NewWebServer(newTestServerContext(t, newFakeGraph(t), ""), nil, "")

	rec := serve(t, ws, http.MethodGet, "/api/inbox", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, ws, http.MethodPost, "/api/set-token", `{"token":"good-token"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, ws, http.MethodGet, "/api/inbox", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "["))
}

func TestWebServer_SetTokenWrongMethod(t *testing.T) {
	ws := NewWebServer(newTestServerContext(t, newFakeGraph(t), ""), nil, "")

	rec := serve(t, ws, http.MethodGet, "/api/set-token", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebServer_HealthRegistered(t *testing.T) {
	sc := newTestServerContext(t, newFakeGraph(t), goodToken)
	ws := NewWebServer(sc, NewHealthChecker(sc, "1.2.3"), "")

	rec := serve(t, ws, http.MethodGet, "/healthz/detailed", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DetailedHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Authenticated)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestWebServer_ListenAndShutdown(t *testing.T) {
	sc := newTestServerContext(t, newFakeGraph(t), "")
	ws := NewWebServer(sc, nil, "127.0.0.1:0")
	require.NoError(t, ws.Listen())

	done := make(chan error, 1)
	go func() { done <- ws.Start() }()

	resp, err := http.Get(ws.URL() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, ws.Shutdown(sc.Context()))
	assert.NoError(t, <-done)
}
