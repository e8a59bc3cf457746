package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
)

// interactiveClient is the part of public.Client used by InteractiveFlow.
type interactiveClient interface {
	AcquireTokenInteractive(ctx context.Context, scopes []string, opts ...public.AcquireInteractiveOption) (public.AuthResult, error)
}

// InteractiveFlow signs in through MSAL's browser-based interactive login.
// MSAL runs its own loopback redirect listener.
type InteractiveFlow struct {
	opts   FlowOptions
	client interactiveClient
	scopes []string
	state  stateTracker
}

// NewInteractiveFlow creates an MSAL public client for the configured authority.
func NewInteractiveFlow(opts FlowOptions) (*InteractiveFlow, error) {
	opts = opts.withDefaults()
	client, err := public.New(opts.ClientID, public.WithAuthority(opts.Endpoints.Authority))
	if err != nil {
		return nil, fmt.Errorf("creating MSAL public client: %w", err)
	}
	return newInteractiveFlow(opts, &client), nil
}

func newInteractiveFlow(opts FlowOptions, client interactiveClient) *InteractiveFlow {
	opts = opts.withDefaults()
	return &InteractiveFlow{
		opts:   opts,
		client: client,
		scopes: interactiveScopes(opts.Scopes),
		state:  opts.tracker(FlowInteractive),
	}
}

// Name implements Flow.
func (f *InteractiveFlow) Name() string { return FlowInteractive }

// Run implements Flow.
func (f *InteractiveFlow) Run(ctx context.Context, identityHint string) (*Credential, error) {
	f.state.enter(StateRequesting)

	// MSAL always sends prompt=select_account on the authorize request.
	acquireOpts := []public.AcquireInteractiveOption{public.WithOpenURL(f.opts.OpenBrowser)}
	if identityHint != "" {
		acquireOpts = append(acquireOpts, public.WithLoginHint(identityHint))
	}

	fmt.Fprintln(f.opts.Prompt, "Opening your browser to sign in...")
	f.state.enter(StateWaitingForBrowserResult)
	result, err := f.client.AcquireTokenInteractive(ctx, f.scopes, acquireOpts...)
	if err != nil {
		f.state.enter(StateFailed)
		return nil, &FlowError{Flow: FlowInteractive, Code: "interactive_login_failed", Description: err.Error()}
	}
	if result.AccessToken == "" {
		f.state.enter(StateFailed)
		return nil, &FlowError{Flow: FlowInteractive, Code: "no_access_token", Description: "interactive login returned no access token"}
	}

	now := time.Now()
	raw, err := json.Marshal(map[string]any{
		"access_token": result.AccessToken,
		"token_type":   "Bearer",
		"expires_on":   result.ExpiresOn.Unix(),
		"scope":        strings.Join(result.GrantedScopes, " "),
	})
	if err != nil {
		f.state.enter(StateFailed)
		return nil, fmt.Errorf("encoding token payload: %w", err)
	}

	f.state.enter(StateAuthenticated)
	return NewCredential(raw, now)
}

// interactiveScopes drops the scopes MSAL adds on its own and rejects if passed.
func interactiveScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		switch s {
		case OfflineAccessScope, "openid", "profile":
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return InteractiveScopes
	}
	return out
}
