package wferr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKind(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same kind", NotFound("op", "missing"), ErrNotFound, true},
		{"other kind", NotFound("op", "missing"), ErrOperationNotAllowed, false},
		{"wrapped", fmt.Errorf("outer: %w", NotAllowed("op", "nope")), ErrOperationNotAllowed, true},
		{"op filter matches", InvalidInput("commands.Paste", "bad"), &Error{Op: "commands.Paste"}, true},
		{"op filter differs", InvalidInput("commands.Paste", "bad"), &Error{Op: "commands.Copy"}, false},
		{"plain error", errors.New("x"), ErrInternal, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, errors.Is(tc.err, tc.target))
		})
	}
}

func TestError_MessageAndCause(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := Wrap(KindInvalidInput, "catalog.Resolve", cause, "problem reading factory settings")

	assert.Equal(t, "problem reading factory settings: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindTimeout, KindOf(fmt.Errorf("wrapped: %w", Timeout("op", "late"))))
	require.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, "No command to undo", NotAllowed("op", "No command to undo").Error())
}

func TestMessage(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Wrap(KindNotFound, "op", errors.New("io"), "Template not found: x"))
	assert.Equal(t, "Template not found: x", Message(wrapped))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
