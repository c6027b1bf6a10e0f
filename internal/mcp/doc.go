// Package mcp exposes a Controller to automation clients as Model Context Protocol
// tools.
//
// ToolServer keeps its own tool registry so tools can be called in-process, and can
// also serve them over any MCP transport (stdio in the relay CLI). The controller
// tools list instances, emit events, issue requests and read or write props.
package mcp
