package webrtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtomicBoolDefaultsFalse(t *testing.T) {
	var b atomicBool
	assert.False(t, b.get())
}

func TestAtomicBoolSetAndGet(t *testing.T) {
	var b atomicBool
	b.set(true)
	assert.True(t, b.get())
	b.set(false)
	assert.False(t, b.get())
}
