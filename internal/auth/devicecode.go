package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	defaultDeviceCodeExpiry   = 900
	defaultDeviceCodeInterval = 5
	slowDownIncrement         = 5 * time.Second

	// progressEvery is how many pending polls pass between progress messages.
	progressEvery = 3

	maxResponseBytes = 1 << 20
)

var (
	errAuthorizationPending = errors.New("authorization_pending")
	errSlowDown             = errors.New("slow_down")
)

// Clock abstracts time for the device code polling loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// DeviceCodeSession is the device authorization response.
type DeviceCodeSession struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	Message         string `json:"message"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// tokenErrorResponse is the OAuth error body of a 400 from the token endpoint.
type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// DeviceCodeFlow implements the OAuth 2.0 device authorization grant.
type DeviceCodeFlow struct {
	opts  FlowOptions
	clock Clock
	state stateTracker
}

// NewDeviceCodeFlow creates a device code flow.
func NewDeviceCodeFlow(opts FlowOptions) *DeviceCodeFlow {
	opts = opts.withDefaults()
	return &DeviceCodeFlow{opts: opts, clock: systemClock{}, state: opts.tracker(FlowDeviceCode)}
}

// WithClock replaces the clock used for polling. Intended for tests.
func (f *DeviceCodeFlow) WithClock(c Clock) *DeviceCodeFlow {
	f.clock = c
	return f
}

// Name implements Flow.
func (f *DeviceCodeFlow) Name() string { return FlowDeviceCode }

// Run implements Flow. The device code grant has no login hint, so
// identityHint is only logged.
func (f *DeviceCodeFlow) Run(ctx context.Context, identityHint string) (*Credential, error) {
	f.state.enter(StateRequesting)
	if identityHint != "" {
		f.state.logger.Debug("device code flow ignores the identity hint")
	}

	session, err := f.requestCode(ctx)
	if err != nil {
		f.state.enter(StateFailed)
		return nil, err
	}
	f.showInstructions(session)

	f.state.enter(StatePolling)
	cred, err := f.poll(ctx, session)
	if err != nil {
		f.state.enter(StateFailed)
		return nil, err
	}

	f.state.enter(StateAuthenticated)
	fmt.Fprintln(f.opts.Prompt, "Authentication successful.")
	return cred, nil
}

func (f *DeviceCodeFlow) requestCode(ctx context.Context) (*DeviceCodeSession, error) {
	form := url.Values{
		"client_id": {f.opts.ClientID},
		"scope":     {strings.Join(f.opts.Scopes, " ")},
	}
	status, body, err := postForm(ctx, f.opts.HTTPClient, f.opts.Endpoints.DeviceAuthURL, form)
	if err != nil {
		return nil, fmt.Errorf("%w: requesting device code: %w", ErrNetwork, err)
	}
	if status != http.StatusOK {
		return nil, flowErrorFromBody(FlowDeviceCode, status, body)
	}

	var session DeviceCodeSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("decoding device code response: %w", err)
	}
	if session.DeviceCode == "" || session.UserCode == "" {
		return nil, &FlowError{Flow: FlowDeviceCode, StatusCode: status, Body: "device code response without device_code or user_code"}
	}
	if session.ExpiresIn <= 0 {
		session.ExpiresIn = defaultDeviceCodeExpiry
	}
	if session.Interval <= 0 {
		session.Interval = defaultDeviceCodeInterval
	}
	return &session, nil
}

func (f *DeviceCodeFlow) showInstructions(s *DeviceCodeSession) {
	w := f.opts.Prompt
	fmt.Fprintln(w)
	if s.Message != "" {
		fmt.Fprintln(w, s.Message)
	} else {
		fmt.Fprintf(w, "To sign in, open %s and enter the code %s\n", s.VerificationURI, s.UserCode)
	}
	fmt.Fprintf(w, "Waiting for authentication (code expires in %d minutes)...\n", s.ExpiresIn/60)
}

// poll queries the token endpoint until the session resolves. No poll is
// issued once expires_in has elapsed.
func (f *DeviceCodeFlow) poll(ctx context.Context, s *DeviceCodeSession) (*Credential, error) {
	start := f.clock.Now()
	expiresIn := time.Duration(s.ExpiresIn) * time.Second
	interval := time.Duration(s.Interval) * time.Second
	pending := 0

	for elapsed := time.Duration(0); elapsed < expiresIn; elapsed = f.clock.Now().Sub(start) {
		cred, err := f.exchange(ctx, s.DeviceCode)
		switch {
		case err == nil:
			return cred, nil
		case errors.Is(err, errAuthorizationPending):
			pending++
			if pending%progressEvery == 0 {
				seconds := int(f.clock.Now().Sub(start).Seconds())
				f.state.logger.Info("still waiting for device authorization", slog.Int("elapsed_seconds", seconds))
				fmt.Fprintf(f.opts.Prompt, "Still waiting... (%ds elapsed)\n", seconds)
			}
		case errors.Is(err, errSlowDown):
			interval += slowDownIncrement
			f.state.logger.Debug("provider asked to slow down", slog.Duration("interval", interval))
		default:
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrAuthTimeout, ctx.Err())
		case <-f.clock.After(interval):
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrDeviceCodeExpired, ErrAuthTimeout)
}

func (f *DeviceCodeFlow) exchange(ctx context.Context, deviceCode string) (*Credential, error) {
	form := url.Values{
		"grant_type":  {deviceCodeGrantType},
		"client_id":   {f.opts.ClientID},
		"device_code": {deviceCode},
	}
	status, body, err := postForm(ctx, f.opts.HTTPClient, f.opts.Endpoints.TokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("%w: polling token endpoint: %w", ErrNetwork, err)
	}

	switch status {
	case http.StatusOK:
		return NewCredential(body, f.clock.Now())
	case http.StatusBadRequest:
		var oauthErr tokenErrorResponse
		_ = json.Unmarshal(body, &oauthErr)
		switch oauthErr.Error {
		case "authorization_pending":
			return nil, errAuthorizationPending
		case "slow_down":
			return nil, errSlowDown
		case "expired_token":
			return nil, ErrDeviceCodeExpired
		}
	}
	return nil, flowErrorFromBody(FlowDeviceCode, status, body)
}

// postForm POSTs a form and returns the status and (bounded) body.
func postForm(ctx context.Context, client *http.Client, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// flowErrorFromBody builds a FlowError from an OAuth error body if there is
// one, otherwise from the raw body.
func flowErrorFromBody(flow string, status int, body []byte) *FlowError {
	var oauthErr tokenErrorResponse
	if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
		return &FlowError{
			Flow:        flow,
			Code:        oauthErr.Error,
			Description: firstLine(oauthErr.ErrorDescription),
			StatusCode:  status,
			Body:        string(body),
		}
	}
	return &FlowError{Flow: flow, StatusCode: status, Body: strings.TrimSpace(string(body))}
}

// firstLine trims the trace and correlation IDs Entra appends to descriptions.
func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
