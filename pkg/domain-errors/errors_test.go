package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodedErrors(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("evaluate: %w", Wrap(cause, CodeUnavailable, "scoring down"))

	assert.True(t, HasCode(err, CodeUnavailable))
	assert.False(t, HasCode(err, CodeValidation))
	assert.ErrorIs(t, err, cause)

	de, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "scoring down", de.Message)

	assert.Equal(t, "validation_error: amount is required", New(CodeValidation, "amount is required").Error())
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
}
