// Package outlook reads inbox message metadata from Microsoft Graph.
//
// The client issues one GET per query against /me/mailFolders/inbox/messages
// and normalizes the response into EmailRecord values. Malformed messages
// are skipped individually; the rest of the batch is still returned.
//
// Queries supported:
//   - ListRecent: newest messages first
//   - ListUnread: up to 50 unread messages
//   - ListSince: messages received within the last N days
//   - Search: subject or sender search
//
// The client holds one bearer credential, set with SetCredential. It never
// refreshes that credential; a 401 from Graph surfaces as ErrTokenInvalid so
// the caller can re-authenticate.
//
// Example usage:
//
//	client := outlook.NewClient(outlook.Options{})
//	client.SetCredential(session.Credential)
//
//	records, err := client.ListRecent(ctx, 10)
//	if errors.Is(err, outlook.ErrTokenInvalid) {
//	    // run the sign-in flow again
//	}
package outlook
