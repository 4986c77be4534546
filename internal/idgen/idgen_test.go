package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerator_SequencesStartAtOneAndAreIndependent(t *testing.T) {
	g := New()
	assert.Equal(t, int64(1), g.NextOrderID())
	assert.Equal(t, int64(2), g.NextOrderID())
	assert.Equal(t, int64(1), g.NextTradeID())
}

func TestGenerator_ConcurrentNextOrderIDUnique(t *testing.T) {
	g := New()
	const n = 1000
	seen := make(chan int64, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			seen <- g.NextOrderID()
		}()
	}
	wg.Wait()
	close(seen)

	ids := make(map[int64]bool)
	for id := range seen {
		assert.False(t, ids[id], "duplicate id %d", id)
		ids[id] = true
	}
	assert.Len(t, ids, n)
}
