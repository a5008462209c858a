// Package llms provides the provider-neutral types used to talk to a chat model:
// messages with typed parts, tool definitions, tool calls and call options.
//
// Provider implementations live in subpackages, with the wire clients in their
// internal directories.
package llms
