package shared

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsByCode(t *testing.T) {
	specific := NewDomainError(CodeNotFound, "product 42 not found")

	assert.ErrorIs(t, specific, ErrNotFound)
	assert.ErrorIs(t, fmt.Errorf("load: %w", specific), ErrNotFound)
	assert.NotErrorIs(t, specific, ErrConcurrencyConflict)
	assert.Equal(t, "product 42 not found", specific.Error())
}

func TestDomainError_WithMessage(t *testing.T) {
	err := ErrInvalidInput.WithMessage("unknown outcome %q", "maybe")

	assert.Equal(t, `unknown outcome "maybe"`, err.Error())
	assert.Equal(t, CodeInvalidInput, err.Code)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "Invalid input", ErrInvalidInput.Message, "the sentinel is not modified")
}
