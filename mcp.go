package siteos

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	internalmcp "github.com/wagiedev/siteos-go/internal/mcp"
)

// Re-export MCP SDK types used by the automation tool server.
type (
	// ToolServer exposes Controller operations as MCP tools.
	ToolServer = internalmcp.ToolServer

	// CallToolResult is the server's response to a tool call.
	CallToolResult = mcp.CallToolResult

	// CallToolRequest is the request passed to tool handlers.
	CallToolRequest = mcp.CallToolRequest

	// McpToolHandler is the function signature for tool handlers.
	McpToolHandler = mcp.ToolHandler

	// Schema is a JSON Schema object, used for tool inputs and props validation.
	Schema = jsonschema.Schema

	// InstanceInfo is the list_instances view of one Instance.
	InstanceInfo = internalmcp.InstanceInfo
)

// NewToolServer creates an MCP tool server with the list_instances, emit, request,
// get_props and set_prop tools bound to ctrl.
//
// Serve it over any MCP transport:
//
//	srv := siteos.NewToolServer(ctrl, "1.0.0")
//	err := srv.Run(ctx, &mcp.StdioTransport{})
//
// More tools can be registered with AddTool before Run.
func NewToolServer(ctrl *Controller, version string) *ToolServer {
	return internalmcp.NewControllerServer(ctrl, version)
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *CallToolResult {
	return internalmcp.TextResult(text)
}

// ErrorResult creates a CallToolResult marked as an error.
func ErrorResult(message string) *CallToolResult {
	return internalmcp.ErrorResult(message)
}

// ParseArguments extracts a tool call's input as a map.
func ParseArguments(req *CallToolRequest) (map[string]any, error) {
	return internalmcp.ParseArguments(req)
}

// NewTool creates a tool definition for ToolServer.AddTool.
func NewTool(name, description string, inputSchema *Schema) *mcp.Tool {
	return internalmcp.NewTool(name, description, inputSchema)
}

// ResultText joins the text content of a tool result.
func ResultText(result *CallToolResult) string {
	return internalmcp.ResultText(result)
}
