package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/inboxreader/internal/instrumentation"
	"github.com/teemow/inboxreader/internal/logging"
)

// Prober checks whether the provider still accepts a credential.
type Prober interface {
	Probe(ctx context.Context, cred *Credential) error
}

// Session is the outcome of a successful Connect.
type Session struct {
	Credential *Credential
	// FromCache is true when a cached credential passed the probe.
	FromCache bool
	// Persisted is false when a fresh credential could not be written to the cache.
	Persisted bool
}

// Authenticator implements cache-then-reauthenticate over one Flow.
type Authenticator struct {
	cache   TokenCache
	flow    Flow
	prober  Prober
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AuthenticatorOption {
	return func(a *Authenticator) { a.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) AuthenticatorOption {
	return func(a *Authenticator) { a.metrics = m }
}

// NewAuthenticator combines a cache, a flow and a prober.
func NewAuthenticator(cache TokenCache, flow Flow, prober Prober, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{cache: cache, flow: flow, prober: prober, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.WithFlow(a.logger, flow.Name())
	return a
}

// Connect returns a usable credential. A cached credential is reused only if
// the probe accepts it; otherwise it is discarded and the flow runs exactly
// once. Every error wraps ErrAuthenticationFailed.
func (a *Authenticator) Connect(ctx context.Context, identityHint string) (*Session, error) {
	if cred := a.cached(ctx); cred != nil {
		a.logger.Info("using cached credential")
		return &Session{Credential: cred, FromCache: true, Persisted: true}, nil
	}

	ctx, span := instrumentation.StartAuthSpan(ctx, a.flow.Name())
	defer span.End()
	span.SetAttributes(attribute.Bool(instrumentation.SpanAttrFromCache, false))

	start := time.Now()
	cred, err := a.flow.Run(ctx, identityHint)
	if err != nil {
		a.metrics.RecordOAuthAuth(ctx, a.flow.Name(), instrumentation.OAuthResultFailure, time.Since(start))
		instrumentation.SetSpanError(span, err)
		a.logger.Error("authentication failed", logging.Err(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrAuthenticationFailed, a.flow.Name(), err)
	}
	a.metrics.RecordOAuthAuth(ctx, a.flow.Name(), instrumentation.OAuthResultSuccess, time.Since(start))
	instrumentation.SetSpanSuccess(span)

	session := &Session{Credential: cred, Persisted: true}
	if err := a.cache.Save(ctx, cred); err != nil {
		session.Persisted = false
		a.logger.Warn("token cache unavailable, proceeding without persistence",
			logging.Backend(a.cache.Backend()), logging.Err(err))
	}

	a.logger.Info("authenticated", slog.Bool("persisted", session.Persisted))
	return session, nil
}

// cached returns the stored credential if the probe accepts it. Unreadable
// or rejected entries are cleared.
func (a *Authenticator) cached(ctx context.Context) *Credential {
	backend := a.cache.Backend()

	cred, err := a.cache.Load(ctx)
	if errors.Is(err, ErrCacheMiss) {
		a.metrics.RecordTokenCacheLookup(ctx, backend, instrumentation.CacheResultMiss)
		return nil
	}
	if err != nil {
		a.metrics.RecordTokenCacheLookup(ctx, backend, instrumentation.CacheResultError)
		a.logger.Warn("ignoring unreadable token cache", logging.Backend(backend), logging.Err(err))
		a.discard(ctx)
		return nil
	}

	if err := a.prober.Probe(ctx, cred); err != nil {
		a.metrics.RecordTokenCacheLookup(ctx, backend, instrumentation.CacheResultInvalid)
		a.logger.Info("cached credential rejected, re-authenticating", logging.Err(err))
		a.discard(ctx)
		return nil
	}

	a.metrics.RecordTokenCacheLookup(ctx, backend, instrumentation.CacheResultHit)
	return cred
}

func (a *Authenticator) discard(ctx context.Context) {
	if err := a.cache.Clear(ctx); err != nil {
		a.logger.Warn("could not clear token cache", logging.Backend(a.cache.Backend()), logging.Err(err))
	}
}

// Logout removes the cached credential.
func (a *Authenticator) Logout(ctx context.Context) error {
	return a.cache.Clear(ctx)
}

// Flow returns the configured flow.
func (a *Authenticator) Flow() Flow {
	return a.flow
}
