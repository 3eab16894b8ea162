package notification

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyRegistryInsertOnce(t *testing.T) {
	r := NewKeyRegistry()

	assert.True(t, r.Insert("goal-milestone-50:g1"))
	assert.False(t, r.Insert("goal-milestone-50:g1"))
	assert.True(t, r.Contains("goal-milestone-50:g1"))
	assert.False(t, r.Contains("goal-milestone-75:g1"))
	assert.Equal(t, 1, r.Len())
}

func TestKeyRegistryReset(t *testing.T) {
	r := NewKeyRegistry()
	r.Insert("a")
	r.Insert("b")

	assert.Equal(t, 2, r.Reset())
	assert.Equal(t, 0, r.Len())
	assert.True(t, r.Insert("a"), "keys may fire once more after a reset")
}

func TestKeyRegistryConcurrentInsert(t *testing.T) {
	r := NewKeyRegistry()
	var wg sync.WaitGroup
	wins := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- r.Insert("shared-key")
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for w := range wins {
		if w {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one goroutine may claim a key")
	assert.Equal(t, 1, r.Len())
}
