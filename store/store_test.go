package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/issmcp/store"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positionRun(chatID string, created time.Time) *store.Run {
	return &store.Run{
		ChatID:    chatID,
		Assistant: "iss",
		Query:     "What's the current geolocation of the ISS?",
		Answer:    "The ISS is at latitude 10.0, longitude 20.0.",
		State:     "Done",
		CreatedAt: created,
		Messages: []llms.Message{
			llms.MessageFromTextParts(llms.RoleDeveloper, "What's the current geolocation of the ISS?"),
			llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
				ID:           "call_1",
				Type:         "function",
				FunctionCall: &llms.FunctionCall{Name: "get_position", Arguments: "{}"},
			}),
			llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
				ToolCallID: "call_1",
				Name:       "get_position",
				Content:    `{"message":"success"}`,
			}),
			llms.MessageFromTextParts(llms.RoleAI, "The ISS is at latitude 10.0, longitude 20.0."),
		},
	}
}

// exerciseStore runs the same checks on every backend
func exerciseStore(t *testing.T, st store.TranscriptStore) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	assert.EqualError(t, st.Save(ctx, &store.Run{}), "chat ID is required")
	assert.EqualError(t, st.Save(ctx, nil), "chat ID is required")

	_, err := st.Load(ctx, "chat-1")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	list, err := st.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	run1 := positionRun("chat-1", now)
	run2 := positionRun("chat-2", now.Add(-2*time.Hour))
	require.NoError(t, st.Save(ctx, run1))
	require.NoError(t, st.Save(ctx, run2))

	got, err := st.Load(ctx, "chat-1")
	require.NoError(t, err)
	if diff := cmp.Diff(run1, got); diff != "" {
		t.Fatalf("run mismatch (-want +got):\n%s", diff)
	}

	list, err = st.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chat-1", "chat-2"}, list)

	// replaced
	run1.Answer = "updated"
	require.NoError(t, st.Save(ctx, run1))
	got, err = st.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Answer)

	deleted, err := st.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), deleted)
	_, err = st.Load(ctx, "chat-2")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	require.NoError(t, st.Delete(ctx, "chat-1"))
	require.NoError(t, st.Delete(ctx, "chat-1"))
	list, err = st.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func Test_MemoryStore(t *testing.T) {
	exerciseStore(t, store.NewMemoryStore())

	// the stored run is a copy
	ctx := context.Background()
	st := store.NewMemoryStore()
	run := positionRun("chat-1", time.Now())
	require.NoError(t, st.Save(ctx, run))
	run.Messages[0] = llms.MessageFromTextParts(llms.RoleHuman, "changed")

	got, err := st.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, llms.RoleDeveloper, got.Messages[0].Role)
}
