package mcp

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/mcp/internal/protocol"
)

var (
	// ErrUnknownTool is returned when the server does not have the requested tool
	ErrUnknownTool = errors.New("unknown tool")
	// ErrNotInitialized is returned when the client is used before Initialize
	ErrNotInitialized = errors.New("client is not initialized")
	// ErrAlreadyRegistered is returned when a tool with the same name is registered twice
	ErrAlreadyRegistered = errors.New("tool already registered")
)

// unknownToolPrefix starts the message of the unknown tool RPC error
const unknownToolPrefix = "unknown tool: "

// RPCError is a JSON-RPC error returned by the peer
type RPCError = protocol.RPCError

func newUnknownToolError(name string) error {
	return protocol.NewRPCError(protocol.CodeInvalidParams, "%s%s", unknownToolPrefix, name)
}

// isUnknownToolError returns true for the RPC error produced by newUnknownToolError
func isUnknownToolError(err error) bool {
	var rpcErr *protocol.RPCError
	return errors.As(err, &rpcErr) &&
		rpcErr.Code == protocol.CodeInvalidParams &&
		strings.HasPrefix(rpcErr.Message, unknownToolPrefix)
}
