// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package framequeue provides the bounded queue frames cross goroutines
// through.
package framequeue

import (
	"sync"

	"github.com/gammazero/deque"
	"go.uber.org/atomic"
)

// Queue is a FIFO of T with a capacity cap. Pushing onto a full queue drops
// the oldest element. It is safe for concurrent use.
type Queue[T any] struct {
	mu    sync.Mutex
	items deque.Deque[T]
	limit int

	dropped atomic.Uint64
}

// New returns a Queue holding at most limit elements.
func New[T any](limit int) *Queue[T] {
	if limit < 1 {
		limit = 1
	}
	q := &Queue[T]{limit: limit}
	q.items.SetBaseCap(min(limit, 64))

	return q
}

// Push appends v and reports whether an older element had to be dropped.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := false
	if q.items.Len() >= q.limit {
		q.items.PopFront()
		q.dropped.Inc()
		dropped = true
	}
	q.items.PushBack(v)

	return dropped
}

// Drain removes every element, oldest first, and appends them to dst.
func (q *Queue[T]) Drain(dst []T) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Len() > 0 {
		dst = append(dst, q.items.PopFront())
	}

	return dst
}

// Dropped returns how many elements were discarded because the queue was
// full.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}
