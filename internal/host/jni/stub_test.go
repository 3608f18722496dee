//go:build !jni || !cgo

package jni

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStub(t *testing.T) {
	assert.False(t, Available())

	_, err := Locator().CreatedVMs()
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = Start([]string{"-Xmx64m"})
	assert.ErrorIs(t, err, ErrUnavailable)
}
