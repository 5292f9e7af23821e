package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := NotFound(CodeTweetNotFound, "tweet not found: %d", 7)
	wrapped := fmt.Errorf("toggle like: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrConflict))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, CodeTweetNotFound, CodeOf(wrapped))
	assert.True(t, errors.Is(wrapped, &Error{Kind: KindNotFound, Code: CodeTweetNotFound}))
	assert.False(t, errors.Is(wrapped, &Error{Kind: KindNotFound, Code: CodeUserNotFound}))
}

func TestPersistenceUnwrapAndRetry(t *testing.T) {
	cause := errors.New("disk full")
	err := Persistence(CodeWriteFailed, "write tweets", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(Conflict(CodeSelfFollow, "cannot follow yourself")))
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, Kind(""), KindOf(cause))
}
