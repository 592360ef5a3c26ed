// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"encoding/binary"
	"fmt"
)

// DefaultScratchSize is the size of the outbound batching buffer.
const DefaultScratchSize = 4096

// minScratchSize fits a rectangle header and a handful of pixels.
const minScratchSize = 64

const (
	msgFramebufferUpdate = 0
	updateHeaderLen      = 4
	rectHeaderLen        = 12
)

// Encoding serializes the pixels of one rectangle of a FramebufferUpdate.
type Encoding interface {
	// Type returns the encoding number sent in the rectangle header.
	Type() int32

	// Encode appends the pixel data for r, read from fb, to w.
	Encode(w *UpdateWriter, fb *Framebuffer, r Rect) error
}

// FlushFunc writes a batch of serialized bytes to the client. It must write
// all of p or return an error.
type FlushFunc func(p []byte) error

// UpdateWriter batches a FramebufferUpdate message in a fixed scratch
// buffer. Whenever an append would overflow the buffer, the buffered bytes
// are flushed first.
type UpdateWriter struct {
	buf     []byte
	flush   FlushFunc
	written int
}

// NewUpdateWriter wraps scratch, which sets the batching capacity.
func NewUpdateWriter(scratch []byte, flush FlushFunc) *UpdateWriter {
	return &UpdateWriter{buf: scratch[:0:len(scratch)], flush: flush}
}

// Written returns the total bytes flushed so far.
func (w *UpdateWriter) Written() int {
	return w.written
}

// Reset drops buffered bytes and clears the byte count.
func (w *UpdateWriter) Reset() {
	w.buf = w.buf[:0]
	w.written = 0
}

// Flush sends all buffered bytes.
func (w *UpdateWriter) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := w.flush(w.buf); err != nil {
		return err
	}
	w.written += len(w.buf)
	w.buf = w.buf[:0]
	return nil
}

// reserve makes room for n contiguous bytes.
func (w *UpdateWriter) reserve(n int) error {
	if n > cap(w.buf) {
		return validationError("UpdateWriter.reserve",
			fmt.Sprintf("%d bytes exceed scratch capacity %d", n, cap(w.buf)), nil)
	}
	if len(w.buf)+n > cap(w.buf) {
		return w.Flush()
	}
	return nil
}

// free returns a slice over the unused scratch space, flushing first if
// less than min bytes remain.
func (w *UpdateWriter) free(minBytes int) ([]byte, error) {
	if err := w.reserve(minBytes); err != nil {
		return nil, err
	}
	return w.buf[len(w.buf):cap(w.buf)], nil
}

// commit marks n bytes of the slice returned by free as used.
func (w *UpdateWriter) commit(n int) {
	w.buf = w.buf[:len(w.buf)+n]
}

// WriteUpdateHeader starts a FramebufferUpdate carrying count rectangles.
func (w *UpdateWriter) WriteUpdateHeader(count int) error {
	if count < 0 || count > 0xffff {
		return validationError("UpdateWriter.WriteUpdateHeader",
			fmt.Sprintf("rectangle count %d out of range", count), nil)
	}
	if err := w.reserve(updateHeaderLen); err != nil {
		return err
	}
	w.buf = append(w.buf, msgFramebufferUpdate, 0)
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(count)) // #nosec G115 - checked above
	return nil
}

// WriteRectHeader writes the position, size and encoding of one rectangle.
func (w *UpdateWriter) WriteRectHeader(r Rect, encoding int32) error {
	if err := w.reserve(rectHeaderLen); err != nil {
		return err
	}
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(r.XMin))     // #nosec G115 - framebuffer coordinates fit u16
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(r.YMin))     // #nosec G115
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(r.Width()))  // #nosec G115
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(r.Height())) // #nosec G115
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(encoding))   // #nosec G115
	return nil
}

// WriteRect writes a rectangle header followed by its pixels encoded with enc.
func (w *UpdateWriter) WriteRect(enc Encoding, fb *Framebuffer, r Rect) error {
	if err := w.WriteRectHeader(r, enc.Type()); err != nil {
		return err
	}
	return enc.Encode(w, fb, r)
}

// UpdateSize returns the number of bytes a raw FramebufferUpdate carrying
// rects occupies on the wire.
func UpdateSize(rects []Rect) int {
	n := updateHeaderLen
	for _, r := range rects {
		n += rectHeaderLen + r.Area()*PixelBytes
	}
	return n
}
