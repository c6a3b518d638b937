package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jcdickinson/rsidebar/internal/daemon"
	"github.com/jcdickinson/rsidebar/internal/rpc"
	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

//go:embed instructions.md
var instructions string

// Backend is the part of the daemon client the MCP tools call.
type Backend interface {
	AddCrates(ctx context.Context, crates []rpc.CrateSpec, onProgress func(string)) ([]rpc.CrateResult, error)
	GetSidebar(ctx context.Context, req rpc.GetSidebarRequest) (*rpc.GetSidebarResponse, error)
	SearchItems(ctx context.Context, req rpc.SearchItemsRequest) (*rpc.SearchItemsResponse, error)
}

type Server struct {
	mcpServer *server.MCPServer
	backend   Backend
}

func NewServer(socketPath string) (*Server, error) {
	client, err := daemon.ConnectOrSpawn(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}
	return newServer(client), nil
}

func newServer(backend Backend) *Server {
	s := &Server{backend: backend}

	mcpServer := server.NewMCPServer(
		"rsidebar",
		"0.1.0",
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("add_crates",
			mcp.WithDescription("Fetch rustdoc JSON from docs.rs and build the sidebar index of every module. Synchronous, returns when complete. Version defaults to \"latest\"."),
			addCratesSchema,
		),
		s.handleAddCrates,
	)

	mcpServer.AddTool(
		mcp.NewTool("search_items",
			mcp.WithDescription("Find public items by name or summary across indexed crates. Returns the module sidebar URI and docs.rs URL of each match."),
			mcp.WithString("query",
				mcp.Description("Item name or words from its summary"),
				mcp.Required(),
			),
			mcp.WithArray("crates",
				mcp.Description("Optional list of crate names to search within"),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithArray("kinds",
				mcp.Description("Optional item kinds, e.g. \"struct\", \"fn\", \"trait\""),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default 20)"),
			),
		),
		s.handleSearchItems,
	)

	mcpServer.AddTool(
		mcp.NewTool("get_sidebar",
			mcp.WithDescription("Get the sidebar of a module: its public items grouped by kind with one-line summaries. With `item`, returns the sections of that item's page instead (fields, variants, methods, trait implementations). Crates that are not indexed yet are fetched first."),
			mcp.WithString("crate",
				mcp.Description("Crate name (e.g., \"serde\")"),
				mcp.Required(),
			),
			mcp.WithString("version",
				mcp.Description("Version (default: \"latest\")"),
			),
			mcp.WithString("module",
				mcp.Description("Module path, e.g. \"serde::de\" or \"de\" (default: crate root)"),
			),
			mcp.WithString("item",
				mcp.Description("Item name inside the module, e.g. \"Deserializer\""),
			),
			mcp.WithString("format",
				mcp.Description("\"markdown\" (default), \"json\" or \"js\" for the raw sidebar-items.js"),
				mcp.Enum(rpc.FormatMarkdown, rpc.FormatJSON, rpc.FormatJS),
			),
		),
		s.handleGetSidebar,
	)
}

func addCratesSchema(t *mcp.Tool) {
	t.InputSchema.Required = append(t.InputSchema.Required, "crates")
	t.InputSchema.Properties["crates"] = map[string]any{
		"type":        "array",
		"description": "List of crates to index",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Crate name (e.g., \"serde\")",
				},
				"version": map[string]any{
					"type":        "string",
					"description": "Version (default: \"latest\")",
				},
			},
			"required": []string{"name"},
		},
	}
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"sidebar://{crate}/{version}/{module}",
			"Rust module sidebar",
			mcp.WithTemplateDescription("The sidebar of a Rust module as markdown. search_items results return these URIs."),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.handleReadResource,
	)
}

// stringList decodes an optional array argument.
func stringList(args map[string]any, key string) []string {
	raw, ok := args[key]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var out []string
	json.Unmarshal(data, &out)
	return out
}

func (s *Server) handleAddCrates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	cratesRaw, ok := args["crates"]
	if !ok {
		return mcp.NewToolResultError("missing required parameter: crates"), nil
	}

	cratesJSON, err := json.Marshal(cratesRaw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid crates parameter: %v", err)), nil
	}

	var specs []rpc.CrateSpec
	if err := json.Unmarshal(cratesJSON, &specs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid crates format: %v", err)), nil
	}

	results, err := s.backend.AddCrates(ctx, specs, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add crates: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleSearchItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	searchReq := rpc.SearchItemsRequest{Query: query, Crates: stringList(args, "crates")}
	for _, k := range stringList(args, "kinds") {
		searchReq.Kinds = append(searchReq.Kinds, sidebar.Kind(k))
	}
	if limit, ok := args["limit"].(float64); ok {
		searchReq.Limit = int(limit)
	}

	resp, err := s.backend.SearchItems(ctx, searchReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(resp.Results, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleGetSidebar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sidebarReq := rpc.GetSidebarRequest{Format: rpc.FormatMarkdown}
	sidebarReq.Crate, _ = args["crate"].(string)
	if sidebarReq.Crate == "" {
		return mcp.NewToolResultError("missing required parameter: crate"), nil
	}
	sidebarReq.Version, _ = args["version"].(string)
	sidebarReq.Module, _ = args["module"].(string)
	sidebarReq.Item, _ = args["item"].(string)
	if format, ok := args["format"].(string); ok && format != "" {
		sidebarReq.Format = format
	}

	resp, err := s.backend.GetSidebar(ctx, sidebarReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get sidebar failed: %v", err)), nil
	}
	return mcp.NewToolResultText(sidebarText(resp)), nil
}

// sidebarText picks the part of a response worth showing to a model.
func sidebarText(resp *rpc.GetSidebarResponse) string {
	if resp.Content != "" {
		return resp.Content
	}
	var v any = resp.Index
	if resp.Sections != nil {
		v = resp.Sections
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	trimmed := strings.TrimPrefix(uri, "sidebar://")
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) < 3 || parts[0] == "" {
		return nil, fmt.Errorf("invalid resource URI: %s", uri)
	}

	resp, err := s.backend.GetSidebar(ctx, rpc.GetSidebarRequest{
		Crate:   parts[0],
		Version: parts[1],
		Module:  parts[2],
		Format:  rpc.FormatMarkdown,
	})
	if err != nil {
		return nil, fmt.Errorf("getting sidebar: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     resp.Content,
		},
	}, nil
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) Shutdown(_ context.Context) error {
	return nil
}
