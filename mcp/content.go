package mcp

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// ProtocolVersion is the MCP revision spoken by the client and server
const ProtocolVersion = "2024-11-05"

// MCP method names
const (
	MethodInitialize       = "initialize"
	MethodPing             = "ping"
	MethodToolsList        = "tools/list"
	MethodToolsCall        = "tools/call"
	MethodToolsListChanged = "notifications/tools/list_changed"
	MethodInitialized      = "notifications/initialized"
)

// ContentType of the tool response content
type ContentType string

// ContentType values
const (
	ContentTypeText ContentType = "text"
)

// TextContent is the text of the content
type TextContent struct {
	Text string `json:"text"`
}

// Content is a single item of a tool response.
// Only text content is produced, other types are kept with their type only.
type Content struct {
	Type        ContentType
	TextContent *TextContent
}

// NewTextContent returns text content
func NewTextContent(text string) *Content {
	return &Content{
		Type:        ContentTypeText,
		TextContent: &TextContent{Text: text},
	}
}

type contentJSON struct {
	Type ContentType `json:"type"`
	Text *string     `json:"text,omitempty"`
}

// MarshalJSON flattens the content into {"type":...,"text":...}
func (c Content) MarshalJSON() ([]byte, error) {
	v := contentJSON{Type: c.Type}
	if c.TextContent != nil {
		v.Text = &c.TextContent.Text
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Content) UnmarshalJSON(data []byte) error {
	var v contentJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.Wrap(err, "invalid content")
	}
	if v.Type == "" {
		return errors.New("content type is missing")
	}
	c.Type = v.Type
	c.TextContent = nil
	if v.Type == ContentTypeText {
		c.TextContent = &TextContent{}
		if v.Text != nil {
			c.TextContent.Text = *v.Text
		}
	}
	return nil
}

// ToolResponse is the result of a tool call
type ToolResponse struct {
	Content []*Content `json:"content"`
	IsError bool       `json:"isError,omitempty"`
}

// NewToolResponse returns a response with the provided content
func NewToolResponse(content ...*Content) *ToolResponse {
	if content == nil {
		content = []*Content{}
	}
	return &ToolResponse{
		Content: content,
	}
}

// Text returns the text content joined by new line
func (r *ToolResponse) Text() string {
	if r == nil {
		return ""
	}
	var parts []string
	for _, c := range r.Content {
		if c != nil && c.TextContent != nil {
			parts = append(parts, c.TextContent.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolRetType is a tool advertised by the server
type ToolRetType struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ToolsResponse is the result of tools/list
type ToolsResponse struct {
	Tools      []ToolRetType `json:"tools"`
	NextCursor *string       `json:"nextCursor,omitempty"`
}

// ListToolsRequest is the tools/list params
type ListToolsRequest struct {
	Cursor *string `json:"cursor,omitempty"`
}

// CallToolRequest is the tools/call params
type CallToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Implementation describes the client or server software
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsCapability advertises the tools support of the server
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerCapabilities advertised in the initialize result
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ClientCapabilities advertised in the initialize request
type ClientCapabilities struct {
	Experimental map[string]any `json:"experimental,omitempty"`
}

// InitializeRequest is the initialize params
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResponse is the initialize result
type InitializeResponse struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}
