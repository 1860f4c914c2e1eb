// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package call

import (
	"sync"

	"github.com/gammazero/deque"
)

// eventQueue delivers observer callbacks one at a time, in the order they
// were pushed. Whichever goroutine finds the queue idle delivers everything
// pending, so a callback that re-enters the Manager queues behind itself
// instead of deadlocking.
type eventQueue struct {
	mu       sync.Mutex
	pending  deque.Deque[func()]
	draining bool
}

func (q *eventQueue) push(events ...func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, ev := range events {
		q.pending.PushBack(ev)
	}
}

func (q *eventQueue) drain() {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()

		return
	}
	q.draining = true

	for q.pending.Len() > 0 {
		ev := q.pending.PopFront()
		q.mu.Unlock()
		ev()
		q.mu.Lock()
	}
	q.draining = false
	q.mu.Unlock()
}
