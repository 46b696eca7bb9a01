package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := Validation("price is required")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrInvalidState))

	wrapped := fmt.Errorf("create request: %w", err)
	assert.True(t, errors.Is(wrapped, ErrValidation))
	assert.Equal(t, KindValidation, KindOf(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient("load request", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsTransient(err))
	assert.Equal(t, "load request: connection reset", err.Error())
	assert.Nil(t, Wrap(KindTransient, "noop", nil))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
