package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teemow/inboxreader/internal/auth"
	"github.com/teemow/inboxreader/internal/instrumentation"
	"github.com/teemow/inboxreader/internal/logging"
	"github.com/teemow/inboxreader/internal/outlook"
)

// ErrEmptyToken is returned by SetToken for a blank token.
var ErrEmptyToken = errors.New("token is empty")

var timeNow = time.Now

// ServerContext holds the mail session shared by all requests of a server
type ServerContext struct {
	ctx     context.Context
	cancel  context.CancelFunc
	mail    *outlook.Client
	metrics *instrumentation.Metrics
	logger  *slog.Logger

	// tokenMu serializes SetToken so concurrent probes cannot interleave
	// their credential swaps.
	tokenMu sync.Mutex

	mu       sync.RWMutex
	shutdown bool
}

// ContextOption configures a ServerContext.
type ContextOption func(*ServerContext)

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) ContextOption {
	return func(sc *ServerContext) { sc.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ContextOption {
	return func(sc *ServerContext) { sc.logger = l }
}

// NewServerContext creates a server context around mail.
func NewServerContext(ctx context.Context, mail *outlook.Client, opts ...ContextOption) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		mail:   mail,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Mail returns the Graph mail client
func (sc *ServerContext) Mail() *outlook.Client {
	return sc.mail
}

// Metrics returns the metrics recorder, which may be nil
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Logger returns the logger
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// SetToken probes token against Graph and adopts it if accepted. A rejected
// token leaves the current credential untouched.
func (sc *ServerContext) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	sc.tokenMu.Lock()
	defer sc.tokenMu.Unlock()

	cred := auth.BearerCredential(token, timeNow())
	if err := sc.mail.Probe(ctx, cred); err != nil {
		sc.logger.Info("rejected access token", slog.String("token", logging.SanitizeToken(token)), logging.Err(err))
		return err
	}
	sc.mail.SetCredential(cred)
	sc.logger.Info("access token accepted", slog.String("token", logging.SanitizeToken(token)))
	return nil
}

// PrimeFromCache adopts the cached credential if Graph still accepts it.
// It never runs a sign-in flow and reports whether a credential was adopted.
func (sc *ServerContext) PrimeFromCache(ctx context.Context, cache auth.TokenCache) bool {
	cred, err := cache.Load(ctx)
	if err != nil {
		if !errors.Is(err, auth.ErrCacheMiss) {
			sc.logger.Warn("ignoring unreadable token cache", logging.Backend(cache.Backend()), logging.Err(err))
		}
		return false
	}
	if err := sc.mail.Probe(ctx, cred); err != nil {
		sc.logger.Info("cached credential rejected; waiting for a token from the UI", logging.Err(err))
		return false
	}
	sc.mail.SetCredential(cred)
	sc.logger.Info("using cached credential", logging.Backend(cache.Backend()))
	return true
}

// Authenticated reports whether a credential is set
func (sc *ServerContext) Authenticated() bool {
	return sc.mail.Authenticated()
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}

// Describe turns a mail error into the message shown to web and MCP clients.
func Describe(err error) string {
	var apiErr *outlook.APIError
	switch {
	case errors.Is(err, outlook.ErrNotAuthenticated):
		return "Not authenticated. Please set your access token."
	case errors.Is(err, outlook.ErrTokenInvalid):
		return "Token expired or invalid"
	case errors.Is(err, outlook.ErrEmptyQuery):
		return "Search query is empty"
	case errors.Is(err, outlook.ErrNetwork):
		return "Could not reach Microsoft Graph"
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return fmt.Sprintf("Microsoft Graph error: %s", apiErr.Message)
		}
		return fmt.Sprintf("Microsoft Graph returned status %d", apiErr.StatusCode)
	default:
		return "Internal error"
	}
}
