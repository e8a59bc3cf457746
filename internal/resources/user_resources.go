package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxreader/internal/server"
)

// Resource URIs.
const (
	URIProfile = "user://profile"
	URISession = "user://session"
)

const mimeJSON = "application/json"

// RegisterUserResources registers resources describing the signed-in user.
func RegisterUserResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil || sc == nil {
		return fmt.Errorf("mcp server and server context are required")
	}

	profileResource := mcp.NewResource(
		URIProfile,
		"Current User Profile",
		mcp.WithResourceDescription("Display name and address of the signed-in Outlook account"),
		mcp.WithMIMEType(mimeJSON),
	)
	s.AddResource(profileResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleUserProfile(ctx, request, sc)
	})

	sessionResource := mcp.NewResource(
		URISession,
		"Session Status",
		mcp.WithResourceDescription("Whether the server currently holds a Microsoft Graph credential"),
		mcp.WithMIMEType(mimeJSON),
	)
	s.AddResource(sessionResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSession(ctx, request, sc)
	})

	return nil
}

// handleUserProfile asks Graph for the current user's profile.
func handleUserProfile(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	profile, err := sc.Mail().Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %s", server.Describe(err))
	}

	return jsonContents(request.Params.URI, map[string]any{
		"displayName": profile.DisplayName,
		"email":       profile.Address,
	})
}

// handleSession reports the local session state without calling Graph.
func handleSession(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, map[string]any{
		"authenticated": sc.Authenticated(),
		"shutdown":      sc.IsShutdown(),
	})
}

func jsonContents(uri string, data map[string]any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: mimeJSON,
			Text:     string(jsonData),
		},
	}, nil
}
