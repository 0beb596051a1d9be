package api

import (
	"fmt"
	"strconv"

	"github.com/guestpulse/matrice-engine/pkg/kit"
	"github.com/guestpulse/matrice-engine/pkg/matrice"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers the four reconciliation MCP tools on the server.
func RegisterMCPTools(srv *server.MCPServer, s *Service) {
	registerResolveRespondent(srv, s)
	registerClusterAgencies(srv, s)
	registerListResorts(srv, s)
	registerNormalizeDate(srv, s)
}

func registerResolveRespondent(srv *server.MCPServer, s *Service) {
	tool := mcp.NewTool("resolve_respondent",
		mcp.WithDescription("Locate a survey respondent in a resort's matrice sheet and return their per-category scores, overall score and free-text feedback."),
		mcp.WithString("resort", mcp.Required(), mcp.Description("Resort identifier (see list_resorts)")),
		mcp.WithString("email", mcp.Description("Respondent email address")),
		mcp.WithString("name", mcp.Description("Respondent full name")),
		mcp.WithString("date", mcp.Description("Survey response date, any supported format")),
		mcp.WithString("row", mcp.Description("Explicit 1-based matrice row override")),
	)

	kit.RegisterMCPTool(srv, tool, resolveEndpoint(s), func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		resortID, _ := args["resort"].(string)
		id := matrice.Identifier{}
		id.Email, _ = args["email"].(string)
		id.Name, _ = args["name"].(string)
		id.Date, _ = args["date"].(string)
		if v, _ := args["row"].(string); v != "" {
			row, err := strconv.Atoi(v)
			if err != nil || row < 1 {
				return nil, fmt.Errorf("row must be a positive integer, got %q", v)
			}
			id.ExplicitRow = row
		}
		if id.Email == "" && id.Name == "" && id.Date == "" && id.ExplicitRow == 0 {
			return nil, fmt.Errorf("at least one of email, name, date or row is required")
		}
		return &kit.MCPDecodeResult{Request: &resolveReq{ResortID: resortID, Identifier: id}}, nil
	})
}

func registerClusterAgencies(srv *server.MCPServer, s *Service) {
	tool := mcp.NewTool("cluster_agencies",
		mcp.WithDescription("List the booking agencies appearing in a resort's respondent sheet, with spelling variants clustered under one display name."),
		mcp.WithString("resort", mcp.Required(), mcp.Description("Resort identifier (see list_resorts)")),
	)

	kit.RegisterMCPTool(srv, tool, agenciesEndpoint(s), func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		resortID, _ := args["resort"].(string)
		return &kit.MCPDecodeResult{Request: &agenciesReq{ResortID: resortID}}, nil
	})
}

func registerListResorts(srv *server.MCPServer, s *Service) {
	tool := mcp.NewTool("list_resorts",
		mcp.WithDescription("List all configured resorts with their identifiers."),
	)

	kit.RegisterMCPTool(srv, tool, listResortsEndpoint(s), func(_ mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	})
}

func registerNormalizeDate(srv *server.MCPServer, s *Service) {
	tool := mcp.NewTool("normalize_date",
		mcp.WithDescription("Normalize a date in any supported survey format (textual, French, ISO, serial, Date(...) literal) to DD/MM/YYYY."),
		mcp.WithString("value", mcp.Required(), mcp.Description("The raw date value")),
	)

	kit.RegisterMCPTool(srv, tool, normalizeDateEndpoint(), func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		value, _ := args["value"].(string)
		if value == "" {
			return nil, fmt.Errorf("value is required")
		}
		return &kit.MCPDecodeResult{Request: &normalizeDateReq{Value: value}}, nil
	})
}
