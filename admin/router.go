// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Package admin serves the device's HTTP side channel: health and status
// probes, Prometheus metrics, framebuffer snapshots and the WebSocket
// display endpoint.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	vncserver "github.com/tenthirtyam/go-vncserver"
	"github.com/tenthirtyam/go-vncserver/snapshot"
)

// Route paths.
const (
	PathHealth   = "/healthz"
	PathStatus   = "/status"
	PathMetrics  = "/metrics"
	PathSnapshot = "/snapshot.png"
	PathDisplay  = "/ws/display"
)

// StatusProvider reports the server state. *vncserver.Server implements it.
type StatusProvider interface {
	Status() vncserver.Status
}

// Config wires the router to the running server. Nil fields disable the
// matching route.
type Config struct {
	Status   StatusProvider
	Snapshot snapshot.Source
	Gatherer prometheus.Gatherer
	Display  http.Handler
	Logger   vncserver.Logger
}

// NewRouter returns the admin HTTP handler.
func NewRouter(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = &vncserver.NoOpLogger{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(cfg.Logger))

	r.Get(PathHealth, healthHandler(cfg.Status))

	if cfg.Status != nil {
		r.Get(PathStatus, statusHandler(cfg.Status))
	}
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, PathMetrics, promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if cfg.Snapshot != nil {
		r.Get(PathSnapshot, snapshotHandler(cfg.Snapshot, cfg.Logger))
	}
	if cfg.Display != nil {
		r.Handle(PathDisplay, cfg.Display)
	}

	return r
}

func healthHandler(status StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status != nil && status.Status().Phase == vncserver.PhaseFailed {
			http.Error(w, "display server failed", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}
}

func statusHandler(status StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status.Status())
	}
}

func snapshotHandler(src snapshot.Source, log vncserver.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := snapshot.PNG(src)
		if err != nil {
			log.Error("snapshot failed", vncserver.Field{Key: "error", Value: err})
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", snapshot.ContentType)
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(data)
	}
}

// requestLogger logs each request at debug level through the server logger.
func requestLogger(log vncserver.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				vncserver.Field{Key: "method", Value: r.Method},
				vncserver.Field{Key: "path", Value: r.URL.Path},
				vncserver.Field{Key: "status", Value: ww.Status()},
				vncserver.Field{Key: "duration", Value: time.Since(start)},
				vncserver.Field{Key: "request_id", Value: middleware.GetReqID(r.Context())})
		})
	}
}
