// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Package vncserver implements a small RFB (VNC) server engine for devices
// that want to expose their display to a stock VNC viewer.
//
// The engine serves one viewer at a time over a deliberately minimal subset
// of RFC 6143: an "RFB 003.003" handshake with no authentication, a fixed
// 32-bit true color pixel format and raw encoding only.
//
// # Basic Usage
//
//	srv, err := vncserver.NewServer(240, 135,
//		vncserver.WithName("thermostat"),
//		vncserver.WithLogger(&vncserver.StandardLogger{}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	go func() {
//		if err := srv.ListenAndServe(ctx); err != nil {
//			log.Fatal(err)
//		}
//	}()
//
//	fb := srv.Framebuffer()
//	fb.FillRect(vncserver.RectXYWH(10, 10, 50, 20), vncserver.ColorRed)
//
// # Rendering
//
// Rendering code draws into the Framebuffer with WritePixel, WriteBlock or
// FillRect from any goroutine. Every write reports the changed area to the
// Tracker. A background transmitter drains the Tracker and sends the changed
// rectangles to the viewer, reading pixels straight from the Framebuffer.
// Under a burst of small writes the Tracker's bounded queue fills up and
// further changes are merged into a single coarse rectangle, so updates are
// never lost, only sent less precisely.
//
// # Input
//
// Pointer events are passed to a PointerHandler. TouchBridge adapts them to
// a touchscreen style consumer that polls for changes.
//
// # Error Handling
//
//	if vncserver.IsServerError(err, vncserver.ErrResource) {
//		log.Printf("cannot start display server: %v", err)
//	}
package vncserver
