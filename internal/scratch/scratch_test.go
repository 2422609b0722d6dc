package scratch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTakeReusesBackingStorage(t *testing.T) {
	var b Buffer[complex64]

	first := b.Take(128)
	first[0] = complex(1, 2)

	second := b.Take(128)
	assert.Equal(t, complex64(complex(1, 2)), second[0], "same backing storage expected")
	assert.Equal(t, &first[0], &second[0])
}

func TestTakeReallocatesOnLengthChange(t *testing.T) {
	var b Buffer[float32]

	first := b.Take(64)
	second := b.Take(65)
	assert.Len(t, second, 65)
	assert.NotEqual(t, &first[0], &second[0])

	// Back to the old length still reallocates: only the previous cycle's
	// length is remembered.
	third := b.Take(64)
	assert.Len(t, third, 64)
}

func TestRelease(t *testing.T) {
	var b Buffer[float32]
	first := b.Take(16)
	b.Release()
	second := b.Take(16)
	assert.Len(t, second, 16)
	assert.NotEqual(t, &first[0], &second[0])
}
