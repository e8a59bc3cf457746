package mail_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxreader/internal/outlook"
	"github.com/teemow/inboxreader/internal/server"
	"github.com/teemow/inboxreader/internal/tools/batch"
	"github.com/teemow/inboxreader/internal/tools/common"
)

// Tool names.
const (
	ToolListRecent = "outlook_list_recent"
	ToolListUnread = "outlook_list_unread"
	ToolListSince  = "outlook_list_since"
	ToolSearch     = "outlook_search"
)

const (
	defaultRecentLimit = 10
	defaultSinceLimit  = 20
	defaultSearchLimit = 10
	defaultSinceDays   = 7
	maxLimit           = 100
	maxDays            = 365

	reauthHint = "Run 'inboxreader login' and restart the server to sign in again."
)

// listing is the JSON payload of a single query.
type listing struct {
	Count  int                   `json:"count"`
	Emails []outlook.EmailRecord `json:"emails"`
}

// RegisterMailTools registers all inbox tools with the MCP server
func RegisterMailTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil || sc == nil {
		return fmt.Errorf("mcp server and server context are required")
	}

	listRecentTool := mcp.NewTool(ToolListRecent,
		mcp.WithDescription("List the most recent messages in the Outlook inbox, newest first"),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of messages (default: %d, max: %d)", defaultRecentLimit, maxLimit)),
		),
	)
	s.AddTool(listRecentTool, common.InstrumentedToolHandler(ToolListRecent, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListRecent(ctx, request, sc)
		}))

	listUnreadTool := mcp.NewTool(ToolListUnread,
		mcp.WithDescription(fmt.Sprintf("List unread messages in the Outlook inbox, newest first (at most %d)", outlook.UnreadLimit)),
	)
	s.AddTool(listUnreadTool, common.InstrumentedToolHandler(ToolListUnread, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListUnread(ctx, request, sc)
		}))

	listSinceTool := mcp.NewTool(ToolListSince,
		mcp.WithDescription("List inbox messages received within the last N days, newest first"),
		mcp.WithNumber("days",
			mcp.Description(fmt.Sprintf("How many days back to look (default: %d, max: %d)", defaultSinceDays, maxDays)),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of messages (default: %d, max: %d)", defaultSinceLimit, maxLimit)),
		),
	)
	s.AddTool(listSinceTool, common.InstrumentedToolHandler(ToolListSince, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListSince(ctx, request, sc)
		}))

	searchTool := mcp.NewTool(ToolSearch,
		mcp.WithDescription("Search inbox messages whose subject or sender matches a term"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term (string) or array of terms to run one search each"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of messages per term (default: %d, max: %d)", defaultSearchLimit, maxLimit)),
		),
	)
	s.AddTool(searchTool, common.InstrumentedToolHandler(ToolSearch, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSearch(ctx, request, sc)
		}))

	return nil
}

func handleListRecent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	limit, err := common.IntArg(request.GetArguments(), "limit", defaultRecentLimit, 1, maxLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := sc.Mail().ListRecent(ctx, limit)
	return listingResult(records, err)
}

func handleListUnread(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	records, err := sc.Mail().ListUnread(ctx)
	return listingResult(records, err)
}

func handleListSince(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	days, err := common.IntArg(args, "days", defaultSinceDays, 0, maxDays)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit, err := common.IntArg(args, "limit", defaultSinceLimit, 1, maxLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := sc.Mail().ListSince(ctx, days, limit)
	return listingResult(records, err)
}

func handleSearch(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	mail := sc.Mail()
	// A missing session fails every query the same way; report it once.
	if !mail.Authenticated() {
		return errorResult(outlook.ErrNotAuthenticated), nil
	}

	args := request.GetArguments()
	queries, err := batch.ParseStringOrArray(args["query"], "query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit, err := common.IntArg(args, "limit", defaultSearchLimit, 1, maxLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(queries) == 1 {
		records, err := mail.Search(ctx, queries[0], limit)
		return listingResult(records, err)
	}

	results := batch.ProcessBatch(ctx, queries, func(ctx context.Context, q string) (any, error) {
		records, err := mail.Search(ctx, q, limit)
		if err != nil {
			return nil, errors.New(server.Describe(err))
		}
		return newListing(records), nil
	})
	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func listingResult(records []outlook.EmailRecord, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult(err), nil
	}
	data, err := json.MarshalIndent(newListing(records), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding messages: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func newListing(records []outlook.EmailRecord) listing {
	if records == nil {
		records = []outlook.EmailRecord{}
	}
	return listing{Count: len(records), Emails: records}
}

func errorResult(err error) *mcp.CallToolResult {
	msg := server.Describe(err)
	if outlook.IsAuthError(err) {
		msg += " " + reauthHint
	}
	return mcp.NewToolResultError(msg)
}
