package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ConsumeThenIsConsumed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	consumed, err := s.IsConsumed(ctx, "sig-1")
	require.NoError(t, err)
	assert.False(t, consumed)

	ok, err := s.Consume(ctx, "sig-1")
	require.NoError(t, err)
	assert.True(t, ok)

	consumed, err = s.IsConsumed(ctx, "sig-1")
	require.NoError(t, err)
	assert.True(t, consumed)
}

func TestMemoryStore_ConsumeTwice(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.Consume(ctx, "sig-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, "sig-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_IndependentProofs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.Consume(ctx, "sig-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, "sig-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_ConcurrentConsumeSameProof(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const goroutines = 10

	var wg sync.WaitGroup
	wins := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Consume(ctx, "contested-sig")
			assert.NoError(t, err)
			wins <- ok
		}()
	}

	wg.Wait()
	close(wins)

	// Exactly one goroutine gets to consume the proof
	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won)
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	s := NewRedisStore(nil)
	assert.Equal(t, "paygate:proof:sig-1", s.key("sig-1"))
}
