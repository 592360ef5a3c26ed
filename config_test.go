// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestServerConfig_Defaults(t *testing.T) {
	cfg := DefaultServerConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.ListenAddress() != ":5900" {
		t.Errorf("ListenAddress() = %q", cfg.ListenAddress())
	}
	if cfg.desktopName() != DefaultName {
		t.Errorf("desktopName() = %q", cfg.desktopName())
	}
	if cfg.tracer() == nil {
		t.Error("tracer() should fall back to the global provider")
	}
}

func TestServerConfig_Options(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	handler := NewTouchBridge()
	cfg := DefaultServerConfig()
	for _, opt := range []ServerOption{
		WithAddress("127.0.0.1"),
		WithPort(5901),
		WithName("panel"),
		WithQueueCapacity(16),
		WithScratchSize(512),
		WithReadTimeout(time.Millisecond),
		WithWriteTimeout(2 * time.Millisecond),
		WithPollInterval(3 * time.Millisecond),
		WithTransmitWait(4 * time.Millisecond),
		WithRetryYield(5 * time.Millisecond),
		WithListenRetry(6 * time.Millisecond),
		WithRotation(Rotate180),
		WithPointerHandler(handler),
		WithListener(ln),
	} {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.ListenAddress() != "127.0.0.1:5901" {
		t.Errorf("ListenAddress() = %q", cfg.ListenAddress())
	}
	if cfg.QueueCapacity != 16 || cfg.ScratchSize != 512 || cfg.Rotation != Rotate180 {
		t.Errorf("options not applied: %+v", cfg)
	}
	if cfg.ReadTimeout != time.Millisecond || cfg.ListenRetry != 6*time.Millisecond || cfg.PollInterval != 3*time.Millisecond {
		t.Errorf("durations not applied: %+v", cfg)
	}
	if cfg.PointerHandler != handler || len(cfg.Listeners) != 1 {
		t.Error("collaborators not applied")
	}
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ServerConfig)
	}{
		{"negative port", func(c *ServerConfig) { c.Port = -1 }},
		{"port too large", func(c *ServerConfig) { c.Port = 70000 }},
		{"invalid name", func(c *ServerConfig) { c.Name = string([]byte{0xff}) }},
		{"zero queue", func(c *ServerConfig) { c.QueueCapacity = 0 }},
		{"queue too large", func(c *ServerConfig) { c.QueueCapacity = 0xffff }},
		{"tiny scratch", func(c *ServerConfig) { c.ScratchSize = 16 }},
		{"bad rotation", func(c *ServerConfig) { c.Rotation = 45 }},
		{"zero read timeout", func(c *ServerConfig) { c.ReadTimeout = 0 }},
		{"zero listen retry", func(c *ServerConfig) { c.ListenRetry = 0 }},
		{"negative poll interval", func(c *ServerConfig) { c.PollInterval = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); !IsServerError(err, ErrConfiguration) {
				t.Errorf("Validate() error = %v, want configuration error", err)
			}
		})
	}
}

func TestServerConfig_FillsCollaborators(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Logger = nil
	cfg.Metrics = nil
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Logger == nil || cfg.Metrics == nil {
		t.Error("Validate() should install no-op collaborators")
	}
}

func TestServerConfig_DesktopName(t *testing.T) {
	cfg := DefaultServerConfig()
	calls := 0
	WithNameProvider(func() string {
		calls++
		return strings.Repeat("n", 100)
	})(&cfg)

	if got := cfg.desktopName(); len(got) != MaxNameLength {
		t.Errorf("desktopName() length = %d, want %d", len(got), MaxNameLength)
	}
	if calls != 1 {
		t.Errorf("provider called %d times", calls)
	}
}
