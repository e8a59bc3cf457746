// Package auth acquires and caches Microsoft identity platform credentials
// for Microsoft Graph.
//
// Three interchangeable flows implement Flow:
//   - DeviceCodeFlow: the user enters a short code on another device while
//     the process polls the token endpoint
//   - InteractiveFlow: MSAL's interactive login in the system browser
//   - AuthCodeFlow: authorization code with PKCE, delivered to a one-shot
//     local callback listener
//
// An Authenticator combines a TokenCache, a Prober and one Flow. Connect
// reuses a cached credential if the probe accepts it, otherwise it runs the
// flow once and stores the result. Credentials are never refreshed; an
// expired token means a new flow run.
//
//	cache := auth.NewFileTokenCache("")
//	flow, err := auth.NewFlow(auth.FlowDeviceCode, opts)
//	authenticator := auth.NewAuthenticator(cache, flow, mailClient)
//	session, err := authenticator.Connect(ctx, "jane@contoso.com")
package auth
