// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

// RingBufferSize is the capacity of a session's inbound command buffer.
const RingBufferSize = 256

// ringBuffer reassembles client commands that arrive split across reads.
// head and tail are free-running counters; positions wrap modulo the
// capacity, and tail-head is the number of buffered bytes.
type ringBuffer struct {
	buf  [RingBufferSize]byte
	head uint32
	tail uint32
}

// Len returns the number of buffered bytes.
func (rb *ringBuffer) Len() int {
	return int(rb.tail - rb.head)
}

// Free returns the remaining capacity.
func (rb *ringBuffer) Free() int {
	return RingBufferSize - rb.Len()
}

// Reset discards all buffered bytes.
func (rb *ringBuffer) Reset() {
	rb.head, rb.tail = 0, 0
}

// Write appends as much of p as fits and returns the number of bytes taken.
func (rb *ringBuffer) Write(p []byte) int {
	n := min(len(p), rb.Free())
	for i := 0; i < n; i++ {
		rb.buf[(rb.tail+uint32(i))%RingBufferSize] = p[i] // #nosec G115 - i < RingBufferSize
	}
	rb.tail += uint32(n) // #nosec G115
	return n
}

// Peek copies buffered bytes into dst without consuming them and returns the
// number copied.
func (rb *ringBuffer) Peek(dst []byte) int {
	n := min(len(dst), rb.Len())
	for i := 0; i < n; i++ {
		dst[i] = rb.buf[(rb.head+uint32(i))%RingBufferSize] // #nosec G115
	}
	return n
}

// Discard consumes n bytes from the front of the buffer.
func (rb *ringBuffer) Discard(n int) {
	n = min(n, rb.Len())
	rb.head += uint32(n) // #nosec G115
	if rb.head == rb.tail {
		rb.Reset()
	}
}
