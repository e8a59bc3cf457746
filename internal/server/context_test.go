package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxreader/internal/auth"
	"github.com/teemow/inboxreader/internal/outlook"
)

func TestServerContext_SetToken(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		wantErr   error
		wantAuth  bool
		wantProbe bool
	}{
		{name: "accepted", token: goodToken, wantAuth: true, wantProbe: true},
		{name: "trimmed", token: "\t" + goodToken + " ", wantAuth: true, wantProbe: true},
		{name: "empty", token: "  ", wantErr: ErrEmptyToken},
		{name: "rejected", token: "expired", wantErr: outlook.ErrTokenInvalid, wantProbe: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGraph(t)
			sc := newTestServerContext(t, g, "")

			err := sc.SetToken(context.Background(), tt.token)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, goodToken, sc.Mail().Credential().AccessToken)
			}
			assert.Equal(t, tt.wantAuth, sc.Authenticated())
			assert.Equal(t, tt.wantProbe, g.requestCount() > 0)
		})
	}
}

func TestServerContext_RejectedTokenKeepsCurrent(t *testing.T) {
	sc := newTestServerContext(t, newFakeGraph(t), goodToken)

	err := sc.SetToken(context.Background(), "expired")

	require.Error(t, err)
	require.NotNil(t, sc.Mail().Credential())
	assert.Equal(t, goodToken, sc.Mail().Credential().AccessToken)
}

func TestServerContext_PrimeFromCache(t *testing.T) {
	tests := []struct {
		name  string
		cache *memoryCache
		want  bool
	}{
		{name: "valid credential", cache: &memoryCache{cred: auth.BearerCredential(goodToken, fixedNow)}, want: true},
		{name: "stale credential", cache: &memoryCache{cred: auth.BearerCredential("expired", fixedNow)}},
		{name: "empty cache", cache: &memoryCache{}},
		{name: "unreadable cache", cache: &memoryCache{loadErr: errors.New("corrupt")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := newTestServerContext(t, newFakeGraph(t), "")

			got := sc.PrimeFromCache(context.Background(), tt.cache)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, sc.Authenticated())
		})
	}
}

func TestServerContext_Shutdown(t *testing.T) {
	sc := newTestServerContext(t, newFakeGraph(t), "")
	assert.False(t, sc.IsShutdown())

	require.NoError(t, sc.Shutdown())
	require.NoError(t, sc.Shutdown())

	assert.True(t, sc.IsShutdown())
	assert.ErrorIs(t, sc.Context().Err(), context.Canceled)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "not authenticated", err: outlook.ErrNotAuthenticated, want: "Not authenticated. Please set your access token."},
		{name: "token invalid", err: fmt.Errorf("graph list_recent: %w", outlook.ErrTokenInvalid), want: "Token expired or invalid"},
		{name: "empty query", err: outlook.ErrEmptyQuery, want: "Search query is empty"},
		{name: "network", err: fmt.Errorf("%w: dial tcp", outlook.ErrNetwork), want: "Could not reach Microsoft Graph"},
		{
			name: "api error with message",
			err:  &outlook.APIError{Op: "search", StatusCode: http.StatusBadRequest, Code: "BadRequest", Message: "Invalid filter clause"},
			want: "Microsoft Graph error: Invalid filter clause",
		},
		{
			name: "api error without message",
			err:  &outlook.APIError{Op: "search", StatusCode: http.StatusBadGateway},
			want: "Microsoft Graph returned status 502",
		},
		{name: "other", err: errors.New("boom"), want: "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.err))
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: outlook.ErrNotAuthenticated, want: http.StatusUnauthorized},
		{err: outlook.ErrTokenInvalid, want: http.StatusUnauthorized},
		{err: outlook.ErrEmptyQuery, want: http.StatusBadRequest},
		{err: outlook.ErrNetwork, want: http.StatusBadGateway},
		{err: &outlook.APIError{StatusCode: http.StatusForbidden}, want: http.StatusBadGateway},
		{err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
