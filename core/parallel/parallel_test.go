package parallel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryItemOnce(t *testing.T) {
	for _, items := range []int{1, 7, 64, 1001} {
		seen := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, c := range seen {
			assert.Equalf(t, int32(1), c, "items=%d index=%d", items, i)
		}
	}
}

func TestParallelizeWithThresholdIsSequentialBelowThreshold(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestParallelizeZeroItems(t *testing.T) {
	called := false
	ParallelizeWithThreshold(0, 0, func(start, end int) { called = true })
	Parallelize(0, func(start, end int) { called = true })
	assert.False(t, called)
}

func TestParallelizeWorkersRanges(t *testing.T) {
	var mu sync.Mutex
	var ranges [][2]int
	ParallelizeWorkers(10, 3, func(start, end int) {
		mu.Lock()
		defer mu.Unlock()
		ranges = append(ranges, [2]int{start, end})
	})
	assert.Len(t, ranges, 3)

	total := 0
	for _, r := range ranges {
		total += r[1] - r[0]
	}
	assert.Equal(t, 10, total)
}
