// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Package snapshot captures the framebuffer as PNG images and optionally
// archives them in S3.
package snapshot

import (
	"bytes"
	"image"
	"image/png"
	"io"
)

// ContentType is the MIME type of encoded snapshots.
const ContentType = "image/png"

// Source provides the pixels to capture. *vncserver.Framebuffer implements it.
type Source interface {
	Image() *image.RGBA
}

// Encode writes a PNG of the source's current contents to w.
func Encode(w io.Writer, src Source) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, src.Image())
}

// PNG returns a PNG of the source's current contents.
func PNG(src Source) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, src); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
