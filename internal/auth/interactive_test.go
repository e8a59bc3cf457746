package auth

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInteractiveClient struct {
	result public.AuthResult
	err    error

	scopes  []string
	options int
}

func (c *fakeInteractiveClient) AcquireTokenInteractive(_ context.Context, scopes []string, opts ...public.AcquireInteractiveOption) (public.AuthResult, error) {
	c.scopes = scopes
	c.options = len(opts)
	return c.result, c.err
}

func TestInteractiveFlow_Success(t *testing.T) {
	client := &fakeInteractiveClient{result: public.AuthResult{
		AccessToken:   "at-msal",
		ExpiresOn:     testEpoch.Add(time.Hour),
		GrantedScopes: []string{"Mail.Read", "User.Read"},
	}}

	var states []State
	flow := newInteractiveFlow(FlowOptions{
		Prompt:   &bytes.Buffer{},
		Logger:   discardLogger(),
		Observer: func(_ string, s State) { states = append(states, s) },
	}, client)

	cred, err := flow.Run(context.Background(), "jane@contoso.com")
	require.NoError(t, err)

	assert.Equal(t, "at-msal", cred.AccessToken)
	assert.Contains(t, string(cred.Raw), `"scope":"Mail.Read User.Read"`)
	assert.Equal(t, InteractiveScopes, client.scopes)
	assert.Equal(t, 2, client.options, "open-url and login hint")
	assert.Equal(t, []State{StateRequesting, StateWaitingForBrowserResult, StateAuthenticated}, states)
}

func TestInteractiveFlow_NoHint(t *testing.T) {
	client := &fakeInteractiveClient{result: public.AuthResult{AccessToken: "at"}}
	flow := newInteractiveFlow(FlowOptions{Logger: discardLogger()}, client)

	_, err := flow.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, client.options)
}

func TestInteractiveFlow_Failures(t *testing.T) {
	tests := []struct {
		name     string
		client   *fakeInteractiveClient
		wantCode string
	}{
		{
			name:     "login cancelled",
			client:   &fakeInteractiveClient{err: errors.New("user cancelled")},
			wantCode: "interactive_login_failed",
		},
		{
			name:     "empty token",
			client:   &fakeInteractiveClient{},
			wantCode: "no_access_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := newInteractiveFlow(FlowOptions{Logger: discardLogger()}, tt.client)

			_, err := flow.Run(context.Background(), "")
			var flowErr *FlowError
			require.ErrorAs(t, err, &flowErr)
			assert.Equal(t, FlowInteractive, flowErr.Flow)
			assert.Equal(t, tt.wantCode, flowErr.Code)
		})
	}
}

func TestInteractiveScopes(t *testing.T) {
	assert.Equal(t, []string{GraphDefaultScope}, interactiveScopes(DefaultScopes))
	assert.Equal(t, []string{"Mail.Read"}, interactiveScopes([]string{"openid", "Mail.Read", "profile"}))
	assert.Equal(t, InteractiveScopes, interactiveScopes([]string{OfflineAccessScope}))
}
