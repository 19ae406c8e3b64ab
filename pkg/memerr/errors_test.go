package memerr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("type", "must be one of fact|decision|error|preference|procedure|relation")
	assert.True(t, IsValidation(err))
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "type")
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFound("fragment", "frag-deadbeef00000000")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.Contains(t, err.Error(), "frag-deadbeef00000000")
}

func TestConflictError(t *testing.T) {
	err := NewConflict("frag-abc", true)
	assert.True(t, IsConflict(err))
	var ce *ConflictError
	assert.ErrorAs(t, err, &ce)
	assert.True(t, ce.Merged)
	assert.Equal(t, "frag-abc", ce.ExistingID)
}

func TestPermissionError(t *testing.T) {
	err := NewPermission("forget on permanent tier requires force=true")
	assert.True(t, IsPermission(err))
}

func TestBackendErrorUnwraps(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := NewBackend("insert", inner)
	assert.True(t, IsBackend(err))
	assert.ErrorIs(t, err, inner)
}

func TestFacadeHidesInternalDetail(t *testing.T) {
	assert.Equal(t, "", Facade(nil))
	assert.Contains(t, Facade(NewValidationError("topic", "required")), "topic")
	assert.Equal(t, "internal error processing request", Facade(NewBackend("query", fmt.Errorf("dial tcp 10.0.0.1:5432"))))
}
