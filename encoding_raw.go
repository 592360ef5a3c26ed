// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

// RawEncoding sends uncompressed pixels as defined in RFC 6143 Section 7.7.1.
// It is the only encoding the server produces, whatever the client lists in
// SetEncodings.
type RawEncoding struct{}

// Type returns the encoding type identifier for Raw encoding.
func (RawEncoding) Type() int32 {
	return 0
}

// Encode streams the w*h pixels of r row by row, four bytes each in blue,
// green, red, pad order. Rows wider than the free scratch space are split
// across flushes.
func (RawEncoding) Encode(w *UpdateWriter, fb *Framebuffer, r Rect) error {
	for y := r.YMin; y <= r.YMax; y++ {
		x := r.XMin
		for x <= r.XMax {
			dst, err := w.free(PixelBytes)
			if err != nil {
				return err
			}
			n := min(r.XMax-x+1, len(dst)/PixelBytes)
			copied := fb.ReadRow(dst, x, y, n)
			if copied == 0 {
				// Outside the store; keep the stream well formed.
				clear(dst[:n*PixelBytes])
				copied = n * PixelBytes
			}
			w.commit(copied)
			x += copied / PixelBytes
		}
	}
	return nil
}
