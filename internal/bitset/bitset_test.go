package bitset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetBasics(t *testing.T) {
	s := New(130)
	assert.False(t, s.Has(0))
	assert.False(t, s.Has(129))

	s.Add(0)
	s.Add(63)
	s.Add(64)
	s.Add(129)
	assert.True(t, s.Has(0))
	assert.True(t, s.Has(63))
	assert.True(t, s.Has(64))
	assert.True(t, s.Has(129))
	assert.False(t, s.Has(65))

	s.Remove(64)
	assert.False(t, s.Has(64))
	assert.True(t, s.Has(63))
}
