package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapping(t *testing.T) {
	assert.ErrorIs(t, NewValidationError("amount", "must be positive"), ErrValidation)
	assert.ErrorIs(t, NewNotFoundError("student", "s1"), ErrNotFound)
	assert.Equal(t, "student s1 not found", NewNotFoundError("student", "s1").Error())
}

func TestBatchResult(t *testing.T) {
	var result BatchResult
	result.AddError("s1", "Tuition", errors.New("boom"))
	result.AddError("s2", "", errors.New("gone"))

	assert.Len(t, result.Errors, 2)
	assert.Equal(t, "s1", result.Errors[0].StudentID)
	assert.Equal(t, "Tuition", result.Errors[0].Purpose)
	assert.Zero(t, result.UpdatedCount)
}

func TestUserSafeMessage(t *testing.T) {
	assert.Equal(t, "student s1 not found", UserSafeMessage(NewNotFoundError("student", "s1")))
	assert.Equal(t, "internal error", UserSafeMessage(errors.New("pq: connection reset")))
}
