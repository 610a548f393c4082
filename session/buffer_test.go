package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferAppendFlushOrder(t *testing.T) {
	b := NewAudioBuffer(1024)

	require.NoError(t, b.Append([]byte{1, 2}))
	require.NoError(t, b.Append([]byte{3}))
	require.NoError(t, b.Append([]byte{4, 5}))
	assert.Equal(t, 5, b.Size())

	assert.Equal(t, []byte{1, 2, 3, 4, 5}, b.Flush())
	assert.Zero(t, b.Size())
	assert.Nil(t, b.Flush())
}

func TestBufferFull(t *testing.T) {
	b := NewAudioBuffer(4)

	require.NoError(t, b.Append([]byte{1, 2, 3}))
	err := b.Append([]byte{4, 5})
	require.ErrorIs(t, err, ErrBufferFull)

	// A rejected append leaves the buffer untouched.
	assert.Equal(t, 3, b.Size())
	require.NoError(t, b.Append([]byte{4}))
}

func TestBufferClear(t *testing.T) {
	b := NewAudioBuffer(64)
	require.NoError(t, b.Append([]byte{1, 2, 3}))
	b.Clear()
	assert.Zero(t, b.Size())
	assert.Nil(t, b.Flush())
}

func TestBufferMaxSize(t *testing.T) {
	assert.Equal(t, 512, NewAudioBuffer(512).MaxSize())
}
