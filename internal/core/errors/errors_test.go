package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormatting(t *testing.T) {
	err := New(CodeValidationError, "unsupported analysis level")
	assert.Contains(t, err.Error(), "VALIDATION_ERROR")
	assert.Contains(t, err.Error(), "unsupported analysis level")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, CodeInternal, "cache write failed")

	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, CodeInternal, de.Code)
	assert.ErrorIs(t, err, cause)
}

func TestAddContextOnPlainError(t *testing.T) {
	err := AddContext(fmt.Errorf("boom"), CtxPath, "/tmp/a.cs")
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "/tmp/a.cs", de.Context[CtxPath])
}

func TestIsCode(t *testing.T) {
	err := New(CodeValidationError, "bad level")
	assert.True(t, IsCode(err, CodeValidationError))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(fmt.Errorf("plain"), CodeValidationError))
}
