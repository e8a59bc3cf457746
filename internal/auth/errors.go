package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheMiss is returned by TokenCache.Load when nothing is stored.
	ErrCacheMiss = errors.New("token cache is empty")

	// ErrAuthenticationFailed wraps every failure returned by Authenticator.Connect.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrDeviceCodeExpired means the device code expired before the user signed in.
	ErrDeviceCodeExpired = errors.New("device code expired")

	// ErrAuthTimeout means no result arrived within the flow's time limit,
	// or the wait was cancelled.
	ErrAuthTimeout = errors.New("authentication timed out")

	// ErrNoAuthorizationCode means the callback arrived without a code.
	ErrNoAuthorizationCode = errors.New("no authorization code received")

	// ErrStateMismatch means the callback's state did not match the request.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrNetwork marks transport failures talking to the identity platform or Graph.
	ErrNetwork = errors.New("network failure")

	// ErrTokenInvalid means the provider rejected the bearer token.
	ErrTokenInvalid = errors.New("token expired or invalid")
)

// FlowError is an error reported by the identity platform, either as an
// OAuth error response or as an unexpected HTTP status.
type FlowError struct {
	Flow        string
	Code        string
	Description string
	StatusCode  int
	Body        string
}

func (e *FlowError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("%s: %s: %s", e.Flow, e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s: %s", e.Flow, e.Code)
	case e.Body != "":
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Flow, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s: unexpected status %d", e.Flow, e.StatusCode)
	}
}
