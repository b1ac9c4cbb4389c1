package bot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandGuardSingleFlight(t *testing.T) {
	g := newCommandGuard()

	assert.True(t, g.acquire("u1"))
	assert.False(t, g.acquire("u1"))
	assert.True(t, g.acquire("u2"), "other users are unaffected")

	g.release("u1")
	assert.True(t, g.acquire("u1"))
}

func TestCommandGuardConcurrent(t *testing.T) {
	g := newCommandGuard()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.acquire("u1") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
