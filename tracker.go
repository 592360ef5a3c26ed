// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"sync"
	"time"
)

// DefaultQueueCapacity is the number of precise dirty rectangles held before
// further changes are merged into the coarse fallback.
const DefaultQueueCapacity = 200

// Tracker accumulates changed screen areas between transmitted frames.
//
// Precise rectangles go into a bounded queue. When the queue is full, a
// rectangle is merged into a single coarse fallback rectangle instead, so no
// change is lost. MarkDirty never blocks and may be called from any
// goroutine; Wait and Drain are meant for a single consumer.
type Tracker struct {
	queue chan Rect
	kick  chan struct{}

	mu       sync.Mutex
	fallback Rect

	metrics MetricsCollector
}

// NewTracker creates a tracker with the given queue capacity.
func NewTracker(capacity int, metrics MetricsCollector) *Tracker {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	return &Tracker{
		queue:    make(chan Rect, capacity),
		kick:     make(chan struct{}, 1),
		fallback: EmptyRect(),
		metrics:  metrics,
	}
}

// Capacity returns the size of the precise queue.
func (t *Tracker) Capacity() int {
	return cap(t.queue)
}

// MarkDirty records r as changed. Empty rectangles are ignored.
func (t *Tracker) MarkDirty(r Rect) {
	if r.Empty() {
		return
	}

	select {
	case t.queue <- r:
		return
	default:
	}

	t.mu.Lock()
	t.fallback = t.fallback.Union(r)
	t.mu.Unlock()
	t.metrics.QueueOverflow()

	// The queue is full, so the consumer is either busy or about to wake
	// on the queue; the kick covers a consumer that drained in between.
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// HasPending reports whether any change is waiting to be drained.
func (t *Tracker) HasPending() bool {
	if len(t.queue) > 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fallback.Valid()
}

// Fallback returns the current coarse fallback rectangle.
func (t *Tracker) Fallback() Rect {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fallback
}

// Drain appends every queued rectangle to dst in arrival order, followed by
// the coarse fallback if it is set, and clears both. It never blocks.
func (t *Tracker) Drain(dst []Rect) []Rect {
queued:
	for {
		select {
		case r := <-t.queue:
			dst = append(dst, r)
		default:
			break queued
		}
	}

	t.mu.Lock()
	if t.fallback.Valid() {
		dst = append(dst, t.fallback)
		t.fallback = EmptyRect()
	}
	t.mu.Unlock()

	return dst
}

// Wait blocks until a change is pending, stop is closed, or timeout
// elapses, then drains everything pending into dst. It returns dst
// unchanged when nothing arrived.
func (t *Tracker) Wait(dst []Rect, stop <-chan struct{}, timeout time.Duration) []Rect {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-t.queue:
		dst = append(dst, r)
	case <-t.kick:
	case <-stop:
		return dst
	case <-timer.C:
		// Pick up a fallback whose kick was consumed by an earlier wait.
	}

	return t.Drain(dst)
}
