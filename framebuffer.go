// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"fmt"
	"image"
	"sync"
)

// PixelBytes is the size of one stored pixel: blue, green, red, pad.
const PixelBytes = 4

// initialFill is the byte every pixel component starts with (mid grey).
const initialFill = 0x80

// MaxFramebufferPixels bounds the pixel store allocation.
const MaxFramebufferPixels = 4096 * 4096

// Rotation is the clockwise rotation of the logical drawing surface relative
// to the transmitted framebuffer.
type Rotation int

// Supported rotations.
const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Valid reports whether r is one of the supported rotations.
func (r Rotation) Valid() bool {
	switch r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return true
	}
	return false
}

// DirtyReporter receives the screen area touched by a framebuffer write.
type DirtyReporter interface {
	MarkDirty(r Rect)
}

// Framebuffer is the server's pixel store: width x height pixels, row-major,
// four bytes per pixel in blue, green, red, pad order. Writes use logical
// coordinates, which differ from the stored layout only when a rotation is
// set. Every successful write reports a rectangle, in stored coordinates,
// that covers all pixels it changed.
type Framebuffer struct {
	mu       sync.RWMutex
	width    int
	height   int
	rotation Rotation
	pix      []byte
	dirty    DirtyReporter
}

// NewFramebuffer allocates a pixel store filled with mid grey. dirty may be
// nil, in which case writes are not reported.
func NewFramebuffer(width, height int, dirty DirtyReporter) (*Framebuffer, error) {
	if err := newInputValidator().ValidateDimensions(width, height); err != nil {
		return nil, resourceError("NewFramebuffer", "cannot allocate pixel buffer", err)
	}

	pix := make([]byte, width*height*PixelBytes)
	for i := range pix {
		pix[i] = initialFill
	}

	return &Framebuffer{
		width:  width,
		height: height,
		pix:    pix,
		dirty:  dirty,
	}, nil
}

// Width returns the stored (transmitted) width in pixels.
func (fb *Framebuffer) Width() int { return fb.width }

// Height returns the stored (transmitted) height in pixels.
func (fb *Framebuffer) Height() int { return fb.height }

// Bounds returns the full stored area.
func (fb *Framebuffer) Bounds() Rect { return RectXYWH(0, 0, fb.width, fb.height) }

// SetRotation changes the mapping from logical to stored coordinates.
func (fb *Framebuffer) SetRotation(r Rotation) error {
	if !r.Valid() {
		return validationError("Framebuffer.SetRotation", fmt.Sprintf("unsupported rotation %d", int(r)), nil)
	}
	fb.mu.Lock()
	fb.rotation = r
	fb.mu.Unlock()
	return nil
}

// Rotation returns the current rotation.
func (fb *Framebuffer) Rotation() Rotation {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.rotation
}

// LogicalSize returns the drawing surface size as seen by the renderer.
func (fb *Framebuffer) LogicalSize() (width, height int) {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.logicalSizeLocked()
}

func (fb *Framebuffer) logicalSizeLocked() (int, int) {
	if fb.rotation == Rotate90 || fb.rotation == Rotate270 {
		return fb.height, fb.width
	}
	return fb.width, fb.height
}

// toStored maps logical coordinates to stored coordinates.
func (fb *Framebuffer) toStored(x, y int) (int, int) {
	switch fb.rotation {
	case Rotate90:
		return fb.width - 1 - y, x
	case Rotate180:
		return fb.width - 1 - x, fb.height - 1 - y
	case Rotate270:
		return y, fb.height - 1 - x
	default:
		return x, y
	}
}

// LogicalPoint maps stored coordinates, as used on the wire, back to the
// drawing surface.
func (fb *Framebuffer) LogicalPoint(x, y int) (int, int) {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	switch fb.rotation {
	case Rotate90:
		return y, fb.width - 1 - x
	case Rotate180:
		return fb.width - 1 - x, fb.height - 1 - y
	case Rotate270:
		return fb.height - 1 - y, x
	default:
		return x, y
	}
}

// storedRect maps a logical rectangle to the stored rectangle covering it.
func (fb *Framebuffer) storedRect(r Rect) Rect {
	x0, y0 := fb.toStored(r.XMin, r.YMin)
	x1, y1 := fb.toStored(r.XMax, r.YMax)
	return Rect{XMin: min(x0, x1), YMin: min(y0, y1), XMax: max(x0, x1), YMax: max(y0, y1)}
}

// setStored writes one stored pixel and reports whether its bytes changed.
// Callers hold fb.mu.
func (fb *Framebuffer) setStored(x, y int, c Color) bool {
	off := (y*fb.width + x) * PixelBytes
	px := fb.pix[off : off+PixelBytes : off+PixelBytes]
	if px[0] == c.B && px[1] == c.G && px[2] == c.R && px[3] == 0 {
		return false
	}
	px[0], px[1], px[2], px[3] = c.B, c.G, c.R, 0
	return true
}

// WritePixel sets one logical pixel. Writes outside the drawing surface are
// ignored. A 1x1 rectangle is reported only if the stored bytes changed.
func (fb *Framebuffer) WritePixel(x, y int, c Color) {
	fb.mu.Lock()
	lw, lh := fb.logicalSizeLocked()
	if x < 0 || y < 0 || x >= lw || y >= lh {
		fb.mu.Unlock()
		return
	}
	sx, sy := fb.toStored(x, y)
	changed := fb.setStored(sx, sy, c)
	fb.mu.Unlock()

	if changed {
		fb.report(RectXYWH(sx, sy, 1, 1))
	}
}

// WriteBlock copies a w x h block of source pixels to logical position
// (x, y). The part of the block outside the drawing surface is clipped.
// Blocks in NativeFormat on an unrotated surface are copied row by row;
// anything else is converted pixel by pixel. src must hold at least
// w*h*format.Bitness.BytesPerPixel() bytes, tightly packed.
func (fb *Framebuffer) WriteBlock(x, y, w, h int, src []byte, format SourceFormat) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	if err := format.Validate(); err != nil {
		return err
	}
	bpp := format.Bitness.BytesPerPixel()
	if need := w * h * bpp; len(src) < need {
		return validationError("Framebuffer.WriteBlock",
			fmt.Sprintf("source holds %d bytes, block needs %d", len(src), need), nil)
	}

	fb.mu.Lock()
	lw, lh := fb.logicalSizeLocked()
	vis := RectXYWH(x, y, w, h).Clip(lw, lh)
	if vis.Empty() {
		fb.mu.Unlock()
		return nil
	}

	var written Rect
	if fb.rotation == Rotate0 && format == NativeFormat {
		fb.copyRowsLocked(vis, x, y, w, src)
		written = vis
	} else {
		written = fb.convertLocked(vis, x, y, w, src, format)
	}
	fb.mu.Unlock()

	fb.report(written)
	return nil
}

// copyRowsLocked is the fast path: source rows are already in stored layout.
// The pad byte is cleared so stored bytes match the generic path.
func (fb *Framebuffer) copyRowsLocked(vis Rect, x, y, w int, src []byte) {
	rowBytes := vis.Width() * PixelBytes
	for row := vis.YMin; row <= vis.YMax; row++ {
		srcOff := ((row-y)*w + (vis.XMin - x)) * PixelBytes
		dstOff := (row*fb.width + vis.XMin) * PixelBytes
		dst := fb.pix[dstOff : dstOff+rowBytes]
		copy(dst, src[srcOff:srcOff+rowBytes])
		for i := 3; i < len(dst); i += PixelBytes {
			dst[i] = 0
		}
	}
}

// convertLocked is the generic path: decode, rotate and store each pixel.
// It returns the stored rectangle covering the block, or an empty rectangle
// if no pixel changed.
func (fb *Framebuffer) convertLocked(vis Rect, x, y, w int, src []byte, format SourceFormat) Rect {
	bpp := format.Bitness.BytesPerPixel()
	changed := false
	for ly := vis.YMin; ly <= vis.YMax; ly++ {
		for lx := vis.XMin; lx <= vis.XMax; lx++ {
			off := ((ly-y)*w + (lx - x)) * bpp
			sx, sy := fb.toStored(lx, ly)
			if fb.setStored(sx, sy, format.Decode(src[off:off+bpp])) {
				changed = true
			}
		}
	}
	if !changed {
		return EmptyRect()
	}
	return fb.storedRect(vis)
}

// Fill paints the whole drawing surface with one color, whatever the
// rotation.
func (fb *Framebuffer) Fill(c Color) {
	fb.mu.Lock()
	for y := 0; y < fb.height; y++ {
		for x := 0; x < fb.width; x++ {
			fb.setStored(x, y, c)
		}
	}
	fb.mu.Unlock()

	fb.report(fb.Bounds())
}

// FillRect paints a logical rectangle with one color.
func (fb *Framebuffer) FillRect(r Rect, c Color) {
	fb.mu.Lock()
	lw, lh := fb.logicalSizeLocked()
	vis := r.Clip(lw, lh)
	if vis.Empty() {
		fb.mu.Unlock()
		return
	}
	for ly := vis.YMin; ly <= vis.YMax; ly++ {
		for lx := vis.XMin; lx <= vis.XMax; lx++ {
			sx, sy := fb.toStored(lx, ly)
			fb.setStored(sx, sy, c)
		}
	}
	stored := fb.storedRect(vis)
	fb.mu.Unlock()

	fb.report(stored)
}

// At returns the stored pixel at stored coordinates (x, y).
func (fb *Framebuffer) At(x, y int) Color {
	if x < 0 || y < 0 || x >= fb.width || y >= fb.height {
		return Color{}
	}
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	off := (y*fb.width + x) * PixelBytes
	return Color{B: fb.pix[off], G: fb.pix[off+1], R: fb.pix[off+2]}
}

// ReadRow copies up to n stored pixels starting at (x, y) into dst and
// returns the number of bytes copied. It holds the read lock only for the
// copy, so a rectangle read row by row may observe concurrent writes.
func (fb *Framebuffer) ReadRow(dst []byte, x, y, n int) int {
	if y < 0 || y >= fb.height || x < 0 || x >= fb.width || n <= 0 {
		return 0
	}
	n = min(n, fb.width-x, len(dst)/PixelBytes)
	off := (y*fb.width + x) * PixelBytes
	fb.mu.RLock()
	copied := copy(dst[:n*PixelBytes], fb.pix[off:off+n*PixelBytes])
	fb.mu.RUnlock()
	return copied
}

// Image returns an RGBA copy of the stored framebuffer.
func (fb *Framebuffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	for i := 0; i < fb.width*fb.height; i++ {
		s := fb.pix[i*PixelBytes:]
		d := img.Pix[i*4:]
		d[0], d[1], d[2], d[3] = s[2], s[1], s[0], 0xff
	}
	return img
}

// MarkDirty reports r (in stored coordinates, clipped to the framebuffer)
// without changing any pixel.
func (fb *Framebuffer) MarkDirty(r Rect) {
	fb.report(r.Clip(fb.width, fb.height))
}

func (fb *Framebuffer) report(r Rect) {
	if fb.dirty == nil || r.Empty() {
		return
	}
	fb.dirty.MarkDirty(r)
}
