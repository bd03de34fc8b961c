package cvfs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCode(t *testing.T) {
	err := NewError("Open", CodeNotFound, "/a", nil)
	assert.True(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(err, CodeFileExists))
}

func TestIsCodeThroughWrap(t *testing.T) {
	inner := NewError("Open", CodeNotFound, "/a", nil)
	wrapped := fmt.Errorf("context: %w", inner)
	assert.True(t, IsCode(wrapped, CodeNotFound))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk failure")
	err := NewError("Run", CodeIO, "/a", cause)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestErrorString(t *testing.T) {
	err := NewError("Open", CodeNotFound, "/a/b", nil)
	assert.Equal(t, "Open /a/b: not-found", err.Error())
}
