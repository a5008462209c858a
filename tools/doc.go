// Package tools defines the interfaces of the tools served over MCP.
package tools
