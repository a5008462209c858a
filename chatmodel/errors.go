package chatmodel

import (
	"github.com/cockroachdb/errors"
)

// Failure taxonomy of a conversation run.
// Errors returned by the assistant and the session are marked with one of
// these, use errors.Is to classify.
var (
	// ErrTransport is returned when the tool server cannot be spawned or reached
	ErrTransport = errors.New("tool server transport failure")
	// ErrProtocolViolation is returned when the model or the tool server
	// breaks the tool calling protocol, for example by requesting an unknown tool
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrModelUnavailable is returned when the model API call fails
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrDuplicateToolName is returned when the tool server advertises
	// two tools with the same name
	ErrDuplicateToolName = errors.New("duplicate tool name")
	// ErrInvalidChatContext is returned when the context has no ChatContext
	ErrInvalidChatContext = errors.New("invalid chat context")
)

// ProtocolViolationf returns a new error marked as ErrProtocolViolation
func ProtocolViolationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrProtocolViolation)
}

// MarkTransport marks err as ErrTransport, nil stays nil
func MarkTransport(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.WithMessage(err, msg), ErrTransport)
}

// MarkModelUnavailable marks err as ErrModelUnavailable, nil stays nil
func MarkModelUnavailable(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.WithMessage(err, msg), ErrModelUnavailable)
}

// Reason returns a short metric friendly name of the error class
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrDuplicateToolName):
		return "duplicate_tool"
	case errors.Is(err, ErrProtocolViolation):
		return "protocol"
	case errors.Is(err, ErrModelUnavailable):
		return "model"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
