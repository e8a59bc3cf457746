package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Credential is a bearer token plus the raw token response it came from.
type Credential struct {
	AccessToken string
	ObtainedAt  time.Time
	// Raw is the provider token response, persisted verbatim by TokenCache.
	Raw json.RawMessage
}

// NewCredential parses a token response payload. The payload must carry a
// non-empty access_token.
func NewCredential(raw []byte, obtainedAt time.Time) (*Credential, error) {
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding token payload: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, errors.New("token payload has no access_token")
	}
	return &Credential{
		AccessToken: payload.AccessToken,
		ObtainedAt:  obtainedAt,
		Raw:         append(json.RawMessage(nil), raw...),
	}, nil
}

// BearerCredential wraps an externally supplied access token, such as one
// pasted into the web UI.
func BearerCredential(accessToken string, obtainedAt time.Time) *Credential {
	raw, _ := json.Marshal(map[string]string{
		"access_token": accessToken,
		"token_type":   "Bearer",
	})
	return &Credential{AccessToken: accessToken, ObtainedAt: obtainedAt, Raw: raw}
}

// Token returns the credential as an oauth2 bearer token.
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{AccessToken: c.AccessToken, TokenType: "Bearer"}
}

// tokenPayload serializes an oauth2 token back into the token response shape.
func tokenPayload(tok *oauth2.Token, now time.Time) ([]byte, error) {
	payload := map[string]any{
		"access_token": tok.AccessToken,
		"token_type":   tok.Type(),
	}
	if tok.RefreshToken != "" {
		payload["refresh_token"] = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		payload["expires_in"] = int64(tok.Expiry.Sub(now).Seconds())
	}
	for _, key := range []string{"scope", "id_token", "ext_expires_in"} {
		if v := tok.Extra(key); v != nil {
			payload[key] = v
		}
	}
	return json.Marshal(payload)
}
