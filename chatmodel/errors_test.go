package chatmodel

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	err := ProtocolViolationf("unknown tool %q", "x")
	assert.EqualError(t, err, `unknown tool "x"`)
	assert.True(t, errors.Is(err, ErrProtocolViolation))
	assert.True(t, errors.Is(errors.WithMessage(err, "run"), ErrProtocolViolation))
	assert.False(t, errors.Is(err, ErrModelUnavailable))

	assert.Nil(t, MarkTransport(nil, "x"))
	assert.Nil(t, MarkModelUnavailable(nil, "x"))

	terr := MarkTransport(errors.New("broken pipe"), "failed to call tool")
	assert.EqualError(t, terr, "failed to call tool: broken pipe")
	assert.True(t, errors.Is(terr, ErrTransport))

	merr := MarkModelUnavailable(errors.New("429"), "generate")
	assert.True(t, errors.Is(merr, ErrModelUnavailable))

	tcases := []struct {
		err    error
		reason string
	}{
		{nil, "none"},
		{err, "protocol"},
		{terr, "transport"},
		{merr, "model"},
		{errors.Wrap(ErrDuplicateToolName, "x"), "duplicate_tool"},
		{errors.New("boom"), "other"},
	}
	for _, tc := range tcases {
		assert.Equal(t, tc.reason, Reason(tc.err))
	}
}
