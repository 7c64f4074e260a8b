package subdialog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_WithFieldDoesNotMutateSentinel(t *testing.T) {
	before := *ErrNoMatch

	withField := ErrNoMatch.WithField("presence", Subscriber, 5)

	assert.Equal(t, before, *ErrNoMatch, "WithField must not mutate the shared sentinel")
	assert.Equal(t, "presence", withField.Event)
	assert.Equal(t, Subscriber, withField.Role)
	assert.Equal(t, uint32(5), withField.CSeq)
}

func TestError_IsMatchesByCode(t *testing.T) {
	derived := ErrNoMatch.WithField("dialog", Notifier, 1)
	assert.True(t, errors.Is(derived, ErrNoMatch))
	assert.False(t, errors.Is(derived, ErrOverlappingRefresh))
}

func TestError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	wrapped := ErrOverlappingRefresh.WithCause(cause)
	assert.Same(t, cause, errors.Unwrap(wrapped))
}
