// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import "time"

// MetricsCollector receives engine events. Implementations must be safe for
// concurrent use: the poll loop, the transmitter and framebuffer writers all
// report through the same collector.
type MetricsCollector interface {
	// SessionStarted is called when a session reaches the ready state.
	SessionStarted()

	// SessionEnded is called when an accepted connection is torn down.
	SessionEnded(reason string, duration time.Duration)

	// CommandReceived counts decoded client commands by name.
	CommandReceived(command string)

	// ProtocolViolation counts rejected or unparseable client input by kind.
	ProtocolViolation(kind string)

	// UpdateSent records one FramebufferUpdate message.
	UpdateSent(rects int, bytes int)

	// RectsDiscarded counts drained rectangles that had no ready session.
	RectsDiscarded(n int)

	// QueueOverflow counts dirty rectangles folded into the coarse fallback.
	QueueOverflow()

	// ListenerRestarted counts listener recreations after accept failures.
	ListenerRestarted()
}

// NoOpMetrics discards all events.
type NoOpMetrics struct{}

// SessionStarted implements MetricsCollector.
func (NoOpMetrics) SessionStarted() {}

// SessionEnded implements MetricsCollector.
func (NoOpMetrics) SessionEnded(string, time.Duration) {}

// CommandReceived implements MetricsCollector.
func (NoOpMetrics) CommandReceived(string) {}

// ProtocolViolation implements MetricsCollector.
func (NoOpMetrics) ProtocolViolation(string) {}

// UpdateSent implements MetricsCollector.
func (NoOpMetrics) UpdateSent(int, int) {}

// RectsDiscarded implements MetricsCollector.
func (NoOpMetrics) RectsDiscarded(int) {}

// QueueOverflow implements MetricsCollector.
func (NoOpMetrics) QueueOverflow() {}

// ListenerRestarted implements MetricsCollector.
func (NoOpMetrics) ListenerRestarted() {}
