// Package store keeps the transcripts of the conversation runs,
// keyed by the chat ID.
package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/issmcp", "store")

// ErrNotFound is returned when the chat has no stored run
var ErrNotFound = errors.New("transcript not found")

// Run is the stored outcome of one conversation run
type Run struct {
	ChatID    string         `json:"chat_id" yaml:"chat_id"`
	Assistant string         `json:"assistant,omitempty" yaml:"assistant,omitempty"`
	Query     string         `json:"query" yaml:"query"`
	Answer    string         `json:"answer,omitempty" yaml:"answer,omitempty"`
	State     string         `json:"state" yaml:"state"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	Messages  []llms.Message `json:"messages" yaml:"messages"`
}

// TranscriptStore persists the runs
type TranscriptStore interface {
	// Save stores the run, replacing the previous run of the same chat
	Save(ctx context.Context, run *Run) error
	// Load returns the run of the chat, or ErrNotFound
	Load(ctx context.Context, chatID string) (*Run, error)
	// List returns the chat IDs with a stored run
	List(ctx context.Context) ([]string, error)
	// Delete removes the run of the chat
	Delete(ctx context.Context, chatID string) error
	// Cleanup removes the runs created before now-olderThan,
	// and returns the number of removed runs
	Cleanup(ctx context.Context, olderThan time.Duration) (uint32, error)
}

func validate(run *Run) error {
	if run == nil || run.ChatID == "" {
		return errors.New("chat ID is required")
	}
	return nil
}
