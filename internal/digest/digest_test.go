package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOf_EmptyTreeLine(t *testing.T) {
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", Of([]byte{}))
	assert.Equal(t, "adc83b19e793491b1c6ea0fd8b46cd9f32e592fc", Of([]byte("\n")))
}

func TestOf_Deterministic(t *testing.T) {
	a := Of([]byte("hello world"))
	b := Of([]byte("hello world"))
	assert.Equal(t, a, b)
	assert.Len(t, a, Size)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("da39a3ee5e6b4b0d3255bfef95601890afd80709"))
	assert.False(t, Valid("DA39A3EE5E6B4B0D3255BFEF95601890AFD80709"))
	assert.False(t, Valid("too-short"))
	assert.False(t, Valid("da39a3ee5e6b4b0d3255bfef95601890afd8070g"))
}

func TestShard(t *testing.T) {
	dir, name, err := Shard("da39a3ee5e6b4b0d3255bfef95601890afd80709")
	require.NoError(t, err)
	assert.Equal(t, "da", dir)
	assert.Equal(t, "39a3ee5e6b4b0d3255bfef95601890afd80709", name)

	_, _, err = Shard("nope")
	assert.Error(t, err)
}
