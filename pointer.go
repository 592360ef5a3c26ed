// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import "sync"

// PointerHandler consumes pointer events from the viewer. pressed reports
// whether the primary button is down. Coordinates are in framebuffer pixels.
type PointerHandler interface {
	PointerEvent(pressed bool, x, y int)
}

// PointerHandlerFunc adapts a function to PointerHandler.
type PointerHandlerFunc func(pressed bool, x, y int)

// PointerEvent calls f.
func (f PointerHandlerFunc) PointerEvent(pressed bool, x, y int) {
	f(pressed, x, y)
}

// TouchState is one touch sample as seen by a touch consumer.
type TouchState struct {
	Touching bool
	X, Y     int
}

// TouchBridge turns viewer pointer events into touchscreen samples. It
// remembers the last pointer state and flags an update only when the button
// state changes, or the pointer moves while pressed. A touch driver polls it
// with Poll, or receives samples on the channel returned by Updates.
type TouchBridge struct {
	mu       sync.Mutex
	state    TouchState
	updated  bool
	updates  chan TouchState
	onUpdate func(TouchState)
}

// NewTouchBridge creates a bridge. The first Poll always reports, so a
// consumer starts from a known state.
func NewTouchBridge() *TouchBridge {
	return &TouchBridge{
		updated: true,
		updates: make(chan TouchState, 1),
	}
}

// OnUpdate registers fn to run after every flagged update. fn runs on the
// server's poll loop and must not block.
func (b *TouchBridge) OnUpdate(fn func(TouchState)) {
	b.mu.Lock()
	b.onUpdate = fn
	b.mu.Unlock()
}

// PointerEvent implements PointerHandler.
func (b *TouchBridge) PointerEvent(pressed bool, x, y int) {
	b.mu.Lock()
	changed := pressed != b.state.Touching || (pressed && (x != b.state.X || y != b.state.Y))
	b.state = TouchState{Touching: pressed, X: x, Y: y}
	if changed {
		b.updated = true
	}
	state, fn := b.state, b.onUpdate
	b.mu.Unlock()

	if !changed {
		return
	}

	// Keep only the newest sample for slow consumers.
	select {
	case b.updates <- state:
	default:
		select {
		case <-b.updates:
		default:
		}
		select {
		case b.updates <- state:
		default:
		}
	}

	if fn != nil {
		fn(state)
	}
}

// Pending reports whether a sample is waiting to be polled.
func (b *TouchBridge) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updated
}

// Poll returns the current state and whether it changed since the last
// Poll. Consumers should only register a touch when ok is true and
// state.Touching is set.
func (b *TouchBridge) Poll() (state TouchState, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.updated {
		return b.state, false
	}
	b.updated = false
	return b.state, true
}

// Updates returns a channel carrying the newest flagged sample.
func (b *TouchBridge) Updates() <-chan TouchState {
	return b.updates
}
