package chatmodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatContext_Basics(t *testing.T) {
	t.Parallel()
	c := NewChatContext("cid", 123)
	require.NotNil(t, c)
	assert.Equal(t, "cid", c.GetChatID())
	assert.Equal(t, 123, c.AppData())

	val, ok := c.GetMetadata("not-found")
	assert.Nil(t, val)
	assert.False(t, ok)
	c.SetMetadata("foo", 1)
	v, ok := c.GetMetadata("foo")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestNewChatContext_DefaultID(t *testing.T) {
	t.Parallel()
	c1 := NewChatContext("", nil)
	c2 := NewChatContext("", nil)
	assert.Len(t, c1.GetChatID(), 36)
	assert.NotEqual(t, c1.GetChatID(), c2.GetChatID())
}

func TestContextPlumbing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert.Nil(t, GetChatContext(ctx))
	assert.Empty(t, GetChatID(ctx))

	c := NewChatContext("x", nil)
	ctx = WithChatContext(ctx, c)
	assert.Equal(t, c, GetChatContext(ctx))
	assert.Equal(t, "x", GetChatID(ctx))

	same, cc := EnsureChatContext(ctx)
	assert.Equal(t, ctx, same)
	assert.Equal(t, c, cc)

	fresh, cc := EnsureChatContext(context.Background())
	require.NotNil(t, cc)
	assert.Equal(t, cc.GetChatID(), GetChatID(fresh))
}
