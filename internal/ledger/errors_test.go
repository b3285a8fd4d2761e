package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsByCode(t *testing.T) {
	err := NotFound("Debt %q is not found.", "d-1")
	wrapped := fmt.Errorf("accept: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrForbidden))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.Equal(t, `NOT_FOUND: Debt "d-1" is not found.`, err.Error())
}

func TestIsForbidden(t *testing.T) {
	assert.True(t, IsForbidden(Forbidden("no")))
	assert.True(t, IsForbidden(ReciprocalForbidden("other side")))
	assert.False(t, IsForbidden(BadRequest("bad")))
	assert.False(t, IsForbidden(nil))

	assert.True(t, IsReciprocal(ReciprocalForbidden("other side")))
	assert.False(t, IsReciprocal(Forbidden("no")))
}

func TestInternal_Unwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause, "insert mirror")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Equal(t, "INTERNAL: insert mirror: disk full", err.Error())
}

func TestCodeOf_Uncoded(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.False(t, IsNotFound(errors.New("boom")))
}
