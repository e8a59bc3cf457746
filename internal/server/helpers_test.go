package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teemow/inboxreader/internal/auth"
	"github.com/teemow/inboxreader/internal/outlook"
)

const goodToken = "good-token"

var fixedNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGraph accepts only goodToken and serves one message for every list.
type fakeGraph struct {
	srv *httptest.Server

	mu      sync.Mutex
	queries []string
	status  int
}

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()
	g := &fakeGraph{status: http.StatusOK}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.queries = append(g.queries, r.URL.RawQuery)
		status := g.status
		g.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+goodToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"code":"ErrorServerBusy","message":"The server is busy."}}`)
			return
		}
		if r.URL.Path == "/me" {
			fmt.Fprint(w, `{"id":"1","displayName":"Ada Lovelace","mail":"ada@example.com"}`)
			return
		}
		fmt.Fprint(w, `{"value":[{"from":{"emailAddress":{"address":"bob@example.com","name":"Bob"}},`+
			`"subject":"Quarterly report","receivedDateTime":"2024-01-14T09:30:00Z",`+
			`"bodyPreview":"Numbers attached","isRead":false,"hasAttachments":true}]}`)
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGraph) setStatus(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
}

func (g *fakeGraph) lastQuery() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queries) == 0 {
		return ""
	}
	return g.queries[len(g.queries)-1]
}

func (g *fakeGraph) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queries)
}

func newTestServerContext(t *testing.T, g *fakeGraph, token string) *ServerContext {
	t.Helper()
	mail := outlook.NewClient(outlook.Options{
		BaseURL:    g.srv.URL,
		HTTPClient: g.srv.Client(),
		Logger:     discardLogger(),
		Now:        func() time.Time { return fixedNow },
	})
	if token != "" {
		mail.SetCredential(auth.BearerCredential(token, fixedNow))
	}
	sc := NewServerContext(context.Background(), mail, WithLogger(discardLogger()))
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

// memoryCache is a TokenCache holding one credential in memory.
type memoryCache struct {
	cred    *auth.Credential
	loadErr error
}

func (c *memoryCache) Load(context.Context) (*auth.Credential, error) {
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	if c.cred == nil {
		return nil, auth.ErrCacheMiss
	}
	return c.cred, nil
}

func (c *memoryCache) Save(_ context.Context, cred *auth.Credential) error {
	c.cred = cred
	return nil
}

func (c *memoryCache) Clear(context.Context) error {
	c.cred = nil
	return nil
}

func (c *memoryCache) Backend() string { return "memory" }

func jsonBody(s string) io.Reader { return strings.NewReader(s) }
