package auth

import (
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	// DefaultAuthorityHost is the Microsoft identity platform host.
	DefaultAuthorityHost = "https://login.microsoftonline.com"

	// DefaultTenant accepts both work/school and personal accounts.
	DefaultTenant = "common"

	// DefaultClientID is the well-known public client ID of the Azure CLI,
	// which is pre-consented for Graph and allows device code and localhost
	// redirects without an app registration.
	DefaultClientID = "04b07795-8ddb-461a-bbee-02f9e1bf7b46"

	// GraphDefaultScope requests every Graph permission consented for the client.
	GraphDefaultScope = "https://graph.microsoft.com/.default"

	// OfflineAccessScope is requested for parity with the provider's consent
	// prompt; the refresh token it yields is stored but never used.
	OfflineAccessScope = "offline_access"
)

// DefaultScopes are requested by the device code and authorization code flows.
var DefaultScopes = []string{GraphDefaultScope, OfflineAccessScope}

// InteractiveScopes are requested by the MSAL flow, which adds offline_access itself.
var InteractiveScopes = []string{GraphDefaultScope}

// Endpoints are the identity platform URLs for one tenant.
type Endpoints struct {
	Authority     string
	AuthURL       string
	TokenURL      string
	DeviceAuthURL string
}

// NewEndpoints returns the v2.0 endpoints for tenant on authorityHost.
// Empty arguments select the defaults.
func NewEndpoints(authorityHost, tenant string) Endpoints {
	if tenant == "" {
		tenant = DefaultTenant
	}
	host := strings.TrimRight(authorityHost, "/")
	if host == "" {
		host = DefaultAuthorityHost
	}
	authority := host + "/" + tenant

	if host == DefaultAuthorityHost {
		ep := microsoft.AzureADEndpoint(tenant)
		return Endpoints{
			Authority:     authority,
			AuthURL:       ep.AuthURL,
			TokenURL:      ep.TokenURL,
			DeviceAuthURL: authority + "/oauth2/v2.0/devicecode",
		}
	}

	return Endpoints{
		Authority:     authority,
		AuthURL:       authority + "/oauth2/v2.0/authorize",
		TokenURL:      authority + "/oauth2/v2.0/token",
		DeviceAuthURL: authority + "/oauth2/v2.0/devicecode",
	}
}

// OAuth2 converts the endpoints for golang.org/x/oauth2. Public clients
// send client_id in the request body.
func (e Endpoints) OAuth2() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:       e.AuthURL,
		TokenURL:      e.TokenURL,
		DeviceAuthURL: e.DeviceAuthURL,
		AuthStyle:     oauth2.AuthStyleInParams,
	}
}
