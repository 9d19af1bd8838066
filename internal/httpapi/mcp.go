package httpapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type noArgs struct{}

// SuggestTransfersArgs are the arguments of the suggest_transfers tool.
type SuggestTransfersArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of suggestions (default: all stored)"`
}

func newMCPServer(svc Service, version string) *mcp.Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(&mcp.Implementation{Name: "transferoracle", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_squad",
		Description: "Itemized evaluation of every owned player, best first",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
		squad, err := svc.AnalyzeSquad()
		return toolJSON(squad, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "suggest_transfers",
		Description: "Ranked one-for-one transfer suggestions within budget",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SuggestTransfersArgs) (*mcp.CallToolResult, any, error) {
		if args.Limit < 0 || args.Limit > maxLimit {
			return toolError(fmt.Errorf("limit must be between 0 and %d", maxLimit)), nil, nil
		}
		suggestions, err := svc.SuggestTransfers(args.Limit)
		return toolJSON(suggestions, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "upcoming_fixtures",
		Description: "Upcoming fixtures and difficulty for every club in the squad",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
		upcoming, err := svc.UpcomingFixtures()
		return toolJSON(upcoming, err)
	})

	return server
}

func toolJSON(v any, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return toolError(err), nil, nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}, nil, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)},
		},
	}
}
