package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/inboxreader/internal/logging"
	"github.com/teemow/inboxreader/internal/outlook"
)

const (
	// DefaultWebAddr is where the web UI listens by default.
	DefaultWebAddr = "localhost:5000"

	// DefaultWebLimit is the number of messages returned by the list endpoints.
	DefaultWebLimit = 20

	// DefaultSinceDays is used by /api/since without a days parameter.
	DefaultSinceDays = 7
	// MaxSinceDays bounds the days parameter of /api/since.
	MaxSinceDays = 365

	maxTokenBody = 64 << 10
)

// Messages returned by the set-token endpoint.
const (
	msgTokenEmpty   = "Token is empty"
	msgTokenInvalid = "Invalid token or no internet connection"
	msgBadRequest   = "Invalid request body"
	msgBadDays      = "days must be an integer between 0 and 365"
)

//go:embed static
var staticFiles embed.FS

// WebServer serves the single-page UI and its JSON API.
type WebServer struct {
	sc         *ServerContext
	httpServer *http.Server
	listener   net.Listener
	addr       string
	logger     *slog.Logger
}

// setTokenRequest is the body of POST /api/set-token.
type setTokenRequest struct {
	Token string `json:"token"`
}

// setTokenResponse is the reply of POST /api/set-token.
type setTokenResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// errorResponse is the reply of a failed list endpoint.
type errorResponse struct {
	Error string `json:"error"`
}

// NewWebServer builds the web UI server. health may be nil.
func NewWebServer(sc *ServerContext, health *HealthChecker, addr string) *WebServer {
	if addr == "" {
		addr = DefaultWebAddr
	}
	s := &WebServer{sc: sc, addr: addr, logger: sc.Logger()}

	mux := http.NewServeMux()
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The directory is embedded at build time.
		panic(err)
	}
	mux.Handle("GET /{$}", http.FileServerFS(static))
	mux.HandleFunc("POST /api/set-token", s.handleSetToken)
	mux.HandleFunc("GET /api/inbox", s.handleInbox)
	mux.HandleFunc("GET /api/unread", s.handleUnread)
	mux.HandleFunc("GET /api/since", s.handleSince)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	if health != nil {
		health.RegisterHealthEndpoints(mux)
	}

	s.httpServer = &http.Server{
		Handler:           instrument(mux, sc.Metrics(), s.logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return sc.Context() },
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *WebServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Listen binds the configured address. Addr reports the bound address afterwards.
func (s *WebServer) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web server listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.addr = ln.Addr().String()
	return nil
}

// Start listens if needed and serves until Shutdown. It returns nil after a
// graceful shutdown.
func (s *WebServer) Start() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("starting web server", "addr", s.addr)
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *WebServer) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	s.logger.Info("shutting down web server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured address, or the bound address after Listen.
func (s *WebServer) Addr() string {
	return s.addr
}

// URL returns the browser address of the UI.
func (s *WebServer) URL() string {
	return "http://" + s.addr
}

func (s *WebServer) handleSetToken(w http.ResponseWriter, r *http.Request) {
	var req setTokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTokenBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, setTokenResponse{Error: msgBadRequest})
		return
	}

	err := s.sc.SetToken(r.Context(), req.Token)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, setTokenResponse{Success: true})
	case errors.Is(err, ErrEmptyToken):
		writeJSON(w, http.StatusBadRequest, setTokenResponse{Error: msgTokenEmpty})
	default:
		writeJSON(w, statusFor(err), setTokenResponse{Error: msgTokenInvalid})
	}
}

func (s *WebServer) handleInbox(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, func(ctx context.Context, mail *outlook.Client) ([]outlook.EmailRecord, error) {
		return mail.ListRecent(ctx, DefaultWebLimit)
	})
}

func (s *WebServer) handleUnread(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, func(ctx context.Context, mail *outlook.Client) ([]outlook.EmailRecord, error) {
		return mail.ListUnread(ctx)
	})
}

func (s *WebServer) handleSince(w http.ResponseWriter, r *http.Request) {
	days := DefaultSinceDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > MaxSinceDays {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgBadDays})
			return
		}
		days = n
	}
	s.list(w, r, func(ctx context.Context, mail *outlook.Client) ([]outlook.EmailRecord, error) {
		return mail.ListSince(ctx, days, DefaultWebLimit)
	})
}

func (s *WebServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	s.list(w, r, func(ctx context.Context, mail *outlook.Client) ([]outlook.EmailRecord, error) {
		return mail.Search(ctx, q, DefaultWebLimit)
	})
}

// list runs fetch for an authenticated session and writes the records, or
// the mapped error. The authentication check comes before any argument check.
func (s *WebServer) list(w http.ResponseWriter, r *http.Request,
	fetch func(context.Context, *outlook.Client) ([]outlook.EmailRecord, error)) {
	mail := s.sc.Mail()
	if !mail.Authenticated() {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: Describe(outlook.ErrNotAuthenticated)})
		return
	}

	records, err := fetch(r.Context(), mail)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Warn("mail request failed", slog.String("route", r.Pattern), logging.Err(err))
		}
		writeJSON(w, status, errorResponse{Error: Describe(err)})
		return
	}
	if records == nil {
		records = []outlook.EmailRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// statusFor maps a mail error to an HTTP status.
func statusFor(err error) int {
	var apiErr *outlook.APIError
	switch {
	case outlook.IsAuthError(err):
		return http.StatusUnauthorized
	case errors.Is(err, outlook.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, outlook.ErrNetwork), errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
