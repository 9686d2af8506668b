package spinlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpinLockMutualExclusion(t *testing.T) {
	sl := New()
	counter := 0

	var wg sync.WaitGroup
	const goroutines = 64
	const increments = 1000
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				sl.Lock()
				counter++
				sl.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*increments, counter)
}

func BenchmarkSpinLock(b *testing.B) {
	sl := New()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			sl.Lock()
			_ = 1 + 1
			sl.Unlock()
		}
	})
}
