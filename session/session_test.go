package session

import (
	"context"
	"sync"
	"testing"

	"github.com/kyousukehsm/TrivAI/messages"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBareSession(t *testing.T) *ClientSession {
	t.Helper()
	cs := &ClientSession{
		ID:        "aaaaaaaa-test-session",
		writeChan: make(chan *messages.ServerMessage, writeBufferSize),
		CloseChan: make(chan struct{}),
	}
	cs.ctx, cs.cancel = context.WithCancel(context.Background())
	return cs
}

func TestQueueMessageAfterCloseDrops(t *testing.T) {
	cs := newBareSession(t)

	require.NoError(t, cs.Close())
	require.NoError(t, cs.Close())
	assert.True(t, cs.IsClosed())

	// Writers racing the shutdown drop their messages rather than panic
	// on a closed channel.
	for i := 0; i < 8; i++ {
		cs.queueMessage(messages.NewStatusMessage(cs.ID, "pong", ""))
	}
	assert.Empty(t, cs.writeChan)
}

func TestQueueMessageConcurrentWithClose(t *testing.T) {
	cs := newBareSession(t)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				cs.queueMessage(messages.NewSpeakingMessage(cs.ID, i%2 == 0))
			}
		}()
	}
	require.NoError(t, cs.Close())
	wg.Wait()

	assert.True(t, cs.IsClosed())
}
