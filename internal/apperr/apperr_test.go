package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWalksWrappedErrors(t *testing.T) {
	base := Conflict("slot already booked", nil)
	wrapped := fmt.Errorf("book: %w", base)

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindConflict))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestPersistenceKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence("failed to load doctor", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load doctor: connection reset", err.Error())
}

func TestForbiddenVersusUnauthorized(t *testing.T) {
	assert.True(t, Forbidden("nope").Forbidden)
	assert.False(t, Unauthorized("who are you").Forbidden)
	assert.Equal(t, "authorization", KindAuthorization.String())
}
