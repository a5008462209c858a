// Package assistants provides the conversation loop that lets the model
// request a tool, runs the tool on the MCP server and submits the result back
// to the model for the final answer.
//
// The loop is a small state machine:
//
//	AwaitingModel -> AwaitingTool -> AwaitingModel -> Done
//	AwaitingModel -> Done
//
// At most MaxToolRounds tool round trips are made in one run,
// and at most one tool call is accepted per model response.
package assistants
