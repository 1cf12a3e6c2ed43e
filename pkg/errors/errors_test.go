package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneOverridesMessageOnly(t *testing.T) {
	cloned := Clone(ErrDuplicate, "Jane Doe is already enrolled")
	assert.Equal(t, ErrDuplicate.Code, cloned.Code)
	assert.Equal(t, ErrDuplicate.Status, cloned.Status)
	assert.Equal(t, "Jane Doe is already enrolled", cloned.Message)
	// The sentinel is untouched.
	assert.Equal(t, "duplicate enrollment detected", ErrDuplicate.Message)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "status update failed")

	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "status update failed")
	assert.Contains(t, wrapped.Error(), "connection reset")
}

func TestHasCodeThroughWrapping(t *testing.T) {
	err := Clone(ErrAlreadyProcessed, "admission is already enrolled")
	require.True(t, HasCode(err, ErrAlreadyProcessed.Code))
	assert.False(t, HasCode(err, ErrDuplicate.Code))

	// Codes survive fmt wrapping.
	outer := fmt.Errorf("enroll: %w", err)
	assert.True(t, HasCode(outer, ErrAlreadyProcessed.Code))

	assert.False(t, HasCode(nil, ErrDuplicate.Code))
	assert.False(t, HasCode(errors.New("plain"), ErrDuplicate.Code))
}

func TestFromErrorNormalises(t *testing.T) {
	assert.Nil(t, FromError(nil))

	typed := FromError(Clone(ErrNotFound, ""))
	assert.Equal(t, http.StatusNotFound, typed.Status)

	plain := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)
}
