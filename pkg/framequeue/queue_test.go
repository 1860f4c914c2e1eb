// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package framequeue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueOrder(t *testing.T) {
	q := New[int](8)
	for i := 0; i < 5; i++ {
		assert.False(t, q.Push(i))
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, q.Drain(nil))
	assert.Empty(t, q.Drain(nil))
}

func TestQueueDropsOldest(t *testing.T) {
	q := New[int](3)
	for i := 0; i < 3; i++ {
		assert.False(t, q.Push(i))
	}
	assert.True(t, q.Push(3))
	assert.True(t, q.Push(4))

	assert.Equal(t, uint64(2), q.Dropped())
	assert.Equal(t, []int{2, 3, 4}, q.Drain(nil))
}

func TestQueueDrainAppends(t *testing.T) {
	q := New[string](4)
	q.Push("b")
	q.Push("c")

	assert.Equal(t, []string{"a", "b", "c"}, q.Drain([]string{"a"}))
	assert.Zero(t, q.Dropped())
}

func TestQueueConcurrent(t *testing.T) {
	q := New[int](100)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				q.Push(i)
			}
		}()
	}

	popped := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			popped += len(q.Drain(nil))
			assert.Equal(t, uint64(4000), uint64(popped)+q.Dropped()) //nolint:gosec // G115

			return
		default:
			popped += len(q.Drain(nil))
		}
	}
}
