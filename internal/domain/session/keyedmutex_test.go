package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	var k keyedMutex

	unlock := k.lock("1")
	require.Equal(t, 1, k.size())
	unlock()
	require.Equal(t, 0, k.size())

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock("2")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
	require.Equal(t, 0, k.size())
}
