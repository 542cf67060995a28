package snapshot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	a, b int
}

func TestHandoff_InitialValue(t *testing.T) {
	initial := &pair{a: 1, b: 1}
	h := New(initial)

	assert.Same(t, initial, h.Load())
	assert.Zero(t, h.Sequence())
}

func TestHandoff_PublishReplaces(t *testing.T) {
	h := New(&pair{})

	next := &pair{a: 2, b: 2}
	h.Publish(next)

	assert.Same(t, next, h.Load())
	assert.Equal(t, uint64(1), h.Sequence())

	v, seq := h.LoadWithSequence()
	assert.Same(t, next, v)
	assert.Equal(t, uint64(1), seq)
}

func TestHandoff_ZeroValueIsUsable(t *testing.T) {
	var h Handoff[pair]

	assert.Nil(t, h.Load())
	h.Publish(&pair{a: 3, b: 3})
	require.NotNil(t, h.Load())
	assert.Equal(t, 3, h.Load().a)
}

// Readers must only ever see pairs written together.
func TestHandoff_ConcurrentReadersSeeWholeValues(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrency test in short mode")
	}

	h := New(&pair{})
	const writes = 20000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= writes; i++ {
			h.Publish(&pair{a: i, b: i})
		}
	}()

	torn := 0
	last := 0
	for i := 0; i < writes; i++ {
		p := h.Load()
		if p.a != p.b {
			torn++
		}
		if p.a < last {
			t.Fatalf("value went backwards: %d after %d", p.a, last)
		}
		last = p.a
	}
	wg.Wait()

	assert.Zero(t, torn)
	assert.Equal(t, uint64(writes), h.Sequence())
	assert.Equal(t, writes, h.Load().a)
}
