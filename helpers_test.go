// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"sync"
	"time"
)

// rectRecorder is a DirtyReporter that remembers every reported rectangle.
type rectRecorder struct {
	mu    sync.Mutex
	rects []Rect
}

func (r *rectRecorder) MarkDirty(rect Rect) {
	r.mu.Lock()
	r.rects = append(r.rects, rect)
	r.mu.Unlock()
}

func (r *rectRecorder) take() []Rect {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.rects
	r.rects = nil
	return out
}

// recordingMetrics counts MetricsCollector events.
type recordingMetrics struct {
	mu         sync.Mutex
	started    int
	ended      []string
	commands   map[string]int
	violations map[string]int
	updates    int
	rects      int
	bytes      int
	discarded  int
	overflows  int
	restarts   int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		commands:   make(map[string]int),
		violations: make(map[string]int),
	}
}

func (m *recordingMetrics) SessionStarted() {
	m.mu.Lock()
	m.started++
	m.mu.Unlock()
}

func (m *recordingMetrics) SessionEnded(reason string, _ time.Duration) {
	m.mu.Lock()
	m.ended = append(m.ended, reason)
	m.mu.Unlock()
}

func (m *recordingMetrics) CommandReceived(command string) {
	m.mu.Lock()
	m.commands[command]++
	m.mu.Unlock()
}

func (m *recordingMetrics) ProtocolViolation(kind string) {
	m.mu.Lock()
	m.violations[kind]++
	m.mu.Unlock()
}

func (m *recordingMetrics) UpdateSent(rects, bytes int) {
	m.mu.Lock()
	m.updates++
	m.rects += rects
	m.bytes += bytes
	m.mu.Unlock()
}

func (m *recordingMetrics) RectsDiscarded(n int) {
	m.mu.Lock()
	m.discarded += n
	m.mu.Unlock()
}

func (m *recordingMetrics) QueueOverflow() {
	m.mu.Lock()
	m.overflows++
	m.mu.Unlock()
}

func (m *recordingMetrics) ListenerRestarted() {
	m.mu.Lock()
	m.restarts++
	m.mu.Unlock()
}

func (m *recordingMetrics) snapshot() *recordingMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &recordingMetrics{
		started:    m.started,
		ended:      append([]string(nil), m.ended...),
		commands:   make(map[string]int, len(m.commands)),
		violations: make(map[string]int, len(m.violations)),
		updates:    m.updates,
		rects:      m.rects,
		bytes:      m.bytes,
		discarded:  m.discarded,
		overflows:  m.overflows,
		restarts:   m.restarts,
	}
	for k, v := range m.commands {
		out.commands[k] = v
	}
	for k, v := range m.violations {
		out.violations[k] = v
	}
	return out
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
