package mcp

// InitializeParams contains parameters for the initialize method.
type InitializeParams struct {
	// ProtocolVersion is the MCP protocol version the client supports.
	ProtocolVersion string `json:"protocolVersion"`

	// ClientInfo contains metadata about the client.
	ClientInfo ClientInfo `json:"clientInfo"`

	// Capabilities describes what the client supports.
	Capabilities map[string]any `json:"capabilities,omitempty"`
}

// ClientInfo contains metadata about the MCP client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result of the initialize method.
type InitializeResult struct {
	// ProtocolVersion is the MCP protocol version the server speaks.
	ProtocolVersion string `json:"protocolVersion"`

	// ServerInfo contains metadata about the server.
	ServerInfo ServerInfoResponse `json:"serverInfo"`

	// Capabilities describes what the server supports.
	Capabilities Capabilities `json:"capabilities"`

	// Instructions is optional guidance shown to the client's model.
	Instructions string `json:"instructions,omitempty"`
}

// ServerInfoResponse contains metadata about the MCP server.
type ServerInfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities describes what the MCP server supports.
type Capabilities struct {
	// Tools indicates the server supports tools.
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability indicates tools support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolsListResult is the result of the tools/list method.
type ToolsListResult struct {
	// Tools is the list of tools visible to the caller.
	Tools []ToolDefinition `json:"tools"`
}

// ToolsCallParams contains parameters for the tools/call method.
type ToolsCallParams struct {
	// Name is the tool name to call.
	Name string `json:"name"`

	// Arguments contains the tool-specific arguments.
	Arguments map[string]any `json:"arguments"`
}

// ToolsCallResult is the result of the tools/call method.
type ToolsCallResult struct {
	// Content holds the payload encoded as JSON text, for clients that
	// only read content blocks.
	Content []Content `json:"content"`

	// StructuredContent is the payload as an object.
	StructuredContent map[string]any `json:"structuredContent,omitempty"`

	// IsError indicates if the tool execution failed.
	IsError bool `json:"isError,omitempty"`
}

// Content represents a piece of content in a tool result.
type Content struct {
	// Type is the content type; the gateway only emits "text".
	Type string `json:"type"`

	// Text contains text content (for type "text").
	Text string `json:"text,omitempty"`
}
