// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package main

import (
	"context"
	"time"

	vncserver "github.com/tenthirtyam/go-vncserver"
)

const (
	stripeHeight = 12
	boxSize      = 16
)

// demo paints a scrolling hue stripe, a bouncing box and touch marks.
type demo struct {
	fb     *vncserver.Framebuffer
	touch  *vncserver.TouchBridge
	hue    float64
	box    vncserver.Rect
	dx, dy int
	stripe []byte
}

func newDemo(fb *vncserver.Framebuffer, touch *vncserver.TouchBridge) *demo {
	w, _ := fb.LogicalSize()
	return &demo{
		fb:     fb,
		touch:  touch,
		box:    vncserver.RectXYWH(0, stripeHeight+1, boxSize, boxSize),
		dx:     3,
		dy:     2,
		stripe: make([]byte, w*stripeHeight*vncserver.FormatRGB565.Bitness.BytesPerPixel()),
	}
}

func (d *demo) run(ctx context.Context, fps int) {
	if fps <= 0 {
		fps = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	d.fb.Fill(vncserver.ColorGrey)
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-d.touch.Updates():
			if s.Touching {
				d.fb.FillRect(vncserver.RectXYWH(s.X-2, s.Y-2, 5, 5), vncserver.ColorWhite)
			}
		case <-ticker.C:
			d.frame()
		}
	}
}

func (d *demo) frame() {
	w, h := d.fb.LogicalSize()

	// The stripe goes through the RGB565 conversion path.
	bpp := vncserver.FormatRGB565.Bitness.BytesPerPixel()
	for x := 0; x < w; x++ {
		c := vncserver.HSV(d.hue+float64(x)*360/float64(w), 100, 100)
		for y := 0; y < stripeHeight; y++ {
			off := (y*w + x) * bpp
			vncserver.FormatRGB565.Encode(c, d.stripe[off:off+bpp])
		}
	}
	_ = d.fb.WriteBlock(0, 0, w, stripeHeight, d.stripe, vncserver.FormatRGB565)
	d.hue += 6

	d.fb.FillRect(d.box, vncserver.ColorGrey)
	next := vncserver.RectXYWH(d.box.XMin+d.dx, d.box.YMin+d.dy, boxSize, boxSize)
	if next.XMin < 0 || next.XMax >= w {
		d.dx = -d.dx
		next = vncserver.RectXYWH(d.box.XMin+d.dx, next.YMin, boxSize, boxSize)
	}
	if next.YMin <= stripeHeight || next.YMax >= h {
		d.dy = -d.dy
		next = vncserver.RectXYWH(next.XMin, d.box.YMin+d.dy, boxSize, boxSize)
	}
	d.box = next
	d.fb.FillRect(d.box, vncserver.HSV(d.hue, 80, 90))
}
