package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/teemow/inboxreader/internal/logging"
)

const callbackShutdownTimeout = 5 * time.Second

// callbackResult is what the one-shot listener hands back to the flow.
type callbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// AuthCodeFlow implements the authorization code grant with PKCE and a
// one-shot local redirect listener.
type AuthCodeFlow struct {
	opts  FlowOptions
	state stateTracker
}

// NewAuthCodeFlow creates an authorization code flow.
func NewAuthCodeFlow(opts FlowOptions) *AuthCodeFlow {
	opts = opts.withDefaults()
	return &AuthCodeFlow{opts: opts, state: opts.tracker(FlowAuthCode)}
}

// Name implements Flow.
func (f *AuthCodeFlow) Name() string { return FlowAuthCode }

// Run implements Flow.
func (f *AuthCodeFlow) Run(ctx context.Context, identityHint string) (*Credential, error) {
	f.state.enter(StateRequesting)
	cred, err := f.run(ctx, identityHint)
	if err != nil {
		f.state.enter(StateFailed)
		return nil, err
	}
	f.state.enter(StateAuthenticated)
	return cred, nil
}

func (f *AuthCodeFlow) run(ctx context.Context, identityHint string) (*Credential, error) {
	ln, err := net.Listen("tcp", f.opts.CallbackAddr)
	if err != nil {
		return nil, fmt.Errorf("starting callback listener on %s: %w", f.opts.CallbackAddr, err)
	}

	conf := &oauth2.Config{
		ClientID:    f.opts.ClientID,
		Endpoint:    f.opts.Endpoints.OAuth2(),
		RedirectURL: redirectURL(f.opts.CallbackAddr, ln.Addr(), f.opts.CallbackPath),
		Scopes:      f.opts.Scopes,
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authOpts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	}
	if identityHint != "" {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("login_hint", identityHint))
	}
	authURL := conf.AuthCodeURL(state, authOpts...)

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           newCallbackHandler(f.opts.CallbackPath, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.state.logger.Warn("callback listener stopped", logging.Err(err))
		}
	}()

	f.state.enter(StateWaitingForCallback)
	f.launchBrowser(authURL)

	res, waitErr := f.await(ctx, results)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), callbackShutdownTimeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		f.state.logger.Debug("callback listener shutdown", logging.Err(err))
	}
	cancel()

	if waitErr != nil {
		return nil, waitErr
	}

	switch {
	case res.Error != "":
		return nil, &FlowError{Flow: FlowAuthCode, Code: res.Error, Description: firstLine(res.ErrorDescription)}
	case res.State != state:
		return nil, ErrStateMismatch
	case res.Code == "":
		return nil, ErrNoAuthorizationCode
	}

	return f.exchange(ctx, conf, res.Code, verifier)
}

func (f *AuthCodeFlow) launchBrowser(authURL string) {
	fmt.Fprintln(f.opts.Prompt, "Opening your browser to sign in...")
	if err := f.opts.OpenBrowser(authURL); err != nil {
		f.state.logger.Warn("could not open browser", logging.Err(err))
	}
	fmt.Fprintf(f.opts.Prompt, "If the browser does not open, visit:\n%s\n", authURL)
}

func (f *AuthCodeFlow) await(ctx context.Context, results <-chan callbackResult) (callbackResult, error) {
	timer := time.NewTimer(f.opts.CallbackTimeout)
	defer timer.Stop()

	select {
	case res := <-results:
		return res, nil
	case <-timer.C:
		return callbackResult{}, fmt.Errorf("%w: no callback within %s", ErrAuthTimeout, f.opts.CallbackTimeout)
	case <-ctx.Done():
		return callbackResult{}, fmt.Errorf("%w: %w", ErrAuthTimeout, ctx.Err())
	}
}

func (f *AuthCodeFlow) exchange(ctx context.Context, conf *oauth2.Config, code, verifier string) (*Credential, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.opts.HTTPClient)
	tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			flowErr := &FlowError{
				Flow:        FlowAuthCode,
				Code:        retrieveErr.ErrorCode,
				Description: firstLine(retrieveErr.ErrorDescription),
				Body:        string(retrieveErr.Body),
			}
			if retrieveErr.Response != nil {
				flowErr.StatusCode = retrieveErr.Response.StatusCode
			}
			return nil, flowErr
		}
		return nil, fmt.Errorf("%w: exchanging authorization code: %w", ErrNetwork, err)
	}

	now := time.Now()
	raw, err := tokenPayload(tok, now)
	if err != nil {
		return nil, fmt.Errorf("encoding token payload: %w", err)
	}
	f.state.logger.Debug("authorization code exchanged", slog.String("token", logging.SanitizeToken(tok.AccessToken)))
	return NewCredential(raw, now)
}

// redirectURL keeps the configured host name (the provider matches
// "localhost" literally) and takes the port from the bound listener.
func redirectURL(configured string, bound net.Addr, path string) string {
	host, _, err := net.SplitHostPort(configured)
	if err != nil || host == "" {
		host = "localhost"
	}
	port := 0
	if tcp, ok := bound.(*net.TCPAddr); ok {
		port = tcp.Port
	}
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(host, fmt.Sprint(port)), path)
}

// newCallbackHandler accepts exactly one redirect on path and sends it on
// results. Later requests get 410 Gone.
func newCallbackHandler(path string, results chan<- callbackResult) http.Handler {
	var once sync.Once
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}

		delivered := false
		once.Do(func() { delivered = true })
		if !delivered {
			http.Error(w, "authorization already handled", http.StatusGone)
			return
		}

		q := r.URL.Query()
		res := callbackResult{
			Code:             q.Get("code"),
			State:            q.Get("state"),
			Error:            q.Get("error"),
			ErrorDescription: q.Get("error_description"),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch {
		case res.Error != "":
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, callbackPage, "Authentication failed", html.EscapeString(firstLine(res.ErrorDescription)))
		case res.Code == "":
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, callbackPage, "Authentication failed", "No authorization code received.")
		default:
			fmt.Fprintf(w, callbackPage, "Authentication successful", "You can close this window and return to the terminal.")
		}

		results <- res
	})
}

const callbackPage = `<!DOCTYPE html>
<html><head><title>inboxreader</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em">
<h1>%s</h1><p>%s</p>
</body></html>
`
