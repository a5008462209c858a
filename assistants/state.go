package assistants

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// State of the conversation loop
type State int

const (
	// StateAwaitingModel is the initial state, the transcript is to be submitted to the model
	StateAwaitingModel State = iota
	// StateAwaitingTool is the state after the model requested a tool call
	StateAwaitingTool
	// StateDone is the terminal state, the answer is available
	StateDone
)

var stateNames = map[State]string{
	StateAwaitingModel: "AwaitingModel",
	StateAwaitingTool:  "AwaitingTool",
	StateDone:          "Done",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *State) UnmarshalText(text []byte) error {
	for st, n := range stateNames {
		if n == string(text) {
			*s = st
			return nil
		}
	}
	return errors.Newf("invalid state: %q", string(text))
}
