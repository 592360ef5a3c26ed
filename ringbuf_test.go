// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"bytes"
	"testing"
)

func TestRingBuffer_WritePeekDiscard(t *testing.T) {
	var rb ringBuffer

	if n := rb.Write([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Fatalf("Write() = %d, want 5", n)
	}
	if rb.Len() != 5 || rb.Free() != RingBufferSize-5 {
		t.Fatalf("Len() = %d, Free() = %d", rb.Len(), rb.Free())
	}

	dst := make([]byte, 3)
	if n := rb.Peek(dst); n != 3 || !bytes.Equal(dst, []byte{1, 2, 3}) {
		t.Fatalf("Peek() = %d % x", n, dst)
	}
	if rb.Len() != 5 {
		t.Fatal("Peek() must not consume")
	}

	rb.Discard(2)
	dst = make([]byte, 8)
	if n := rb.Peek(dst); n != 3 || !bytes.Equal(dst[:n], []byte{3, 4, 5}) {
		t.Fatalf("Peek() after Discard = % x", dst[:n])
	}

	rb.Discard(10)
	if rb.Len() != 0 {
		t.Errorf("Len() after over-discard = %d, want 0", rb.Len())
	}
}

func TestRingBuffer_Full(t *testing.T) {
	var rb ringBuffer

	data := bytes.Repeat([]byte{0xAB}, RingBufferSize+10)
	if n := rb.Write(data); n != RingBufferSize {
		t.Errorf("Write() = %d, want %d", n, RingBufferSize)
	}
	if rb.Free() != 0 {
		t.Errorf("Free() = %d, want 0", rb.Free())
	}
	if n := rb.Write([]byte{1}); n != 0 {
		t.Errorf("Write() into a full buffer = %d, want 0", n)
	}

	rb.Reset()
	if rb.Len() != 0 || rb.Free() != RingBufferSize {
		t.Error("Reset() should empty the buffer")
	}
}

func TestRingBuffer_Wraparound(t *testing.T) {
	var rb ringBuffer

	// Keep one byte buffered so the counters never reset and the data
	// wraps around the end of the backing array many times.
	rb.Write([]byte{0})
	var next byte = 1
	out := make([]byte, 100)
	for round := 0; round < 20; round++ {
		chunk := make([]byte, 100)
		for i := range chunk {
			chunk[i] = next
			next++
		}
		if n := rb.Write(chunk); n != len(chunk) {
			t.Fatalf("round %d: Write() = %d", round, n)
		}

		rb.Discard(1)
		n := rb.Peek(out)
		if n != 100 {
			t.Fatalf("round %d: Peek() = %d", round, n)
		}
		if !bytes.Equal(out, chunk) {
			t.Fatalf("round %d: Peek() = % x, want % x", round, out[:4], chunk[:4])
		}
		rb.Discard(99)
		if rb.Len() != 1 {
			t.Fatalf("round %d: Len() = %d, want 1", round, rb.Len())
		}
	}
}
