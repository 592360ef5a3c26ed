// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	vncserver "github.com/tenthirtyam/go-vncserver"
	"github.com/tenthirtyam/go-vncserver/admin"
	"github.com/tenthirtyam/go-vncserver/metrics"
	"github.com/tenthirtyam/go-vncserver/snapshot"
	"github.com/tenthirtyam/go-vncserver/wsbridge"
)

type serveOptions struct {
	address  string
	port     int
	name     string
	width    int
	height   int
	rotation int
	logLevel string
	httpAddr string
	queue    int
	scratch  int
	demo     bool
	fps      int

	snapshotBucket   string
	snapshotPrefix   string
	snapshotInterval time.Duration
	s3Region         string
	s3Endpoint       string
	s3PathStyle      bool
}

func serveCmd() *cobra.Command {
	return newServeCmd(runServe)
}

func newServeCmd(run func(context.Context, serveOptions) error) *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the display server",
		Long: `Run the display server until interrupted.

Examples:
  vncserver serve
  vncserver serve --width=320 --height=240 --rotation=90
  vncserver serve --http=:8080 --snapshot-bucket=device-frames`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.address, "address", "", "Interface to listen on (default all)")
	f.IntVarP(&opts.port, "port", "p", vncserver.DefaultPort, "RFB listening port")
	f.StringVar(&opts.name, "name", vncserver.DefaultName, "Desktop name sent to viewers")
	f.IntVar(&opts.width, "width", 240, "Framebuffer width in pixels")
	f.IntVar(&opts.height, "height", 135, "Framebuffer height in pixels")
	f.IntVar(&opts.rotation, "rotation", 0, "Drawing surface rotation (0, 90, 180, 270)")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&opts.httpAddr, "http", ":8080", "Admin HTTP address; empty disables it")
	f.IntVar(&opts.queue, "queue", vncserver.DefaultQueueCapacity, "Dirty rectangle queue capacity")
	f.IntVar(&opts.scratch, "scratch", vncserver.DefaultScratchSize, "Outbound batching buffer size in bytes")
	f.BoolVar(&opts.demo, "demo", true, "Run the demo renderer")
	f.IntVar(&opts.fps, "fps", 10, "Demo renderer frame rate")
	f.StringVar(&opts.snapshotBucket, "snapshot-bucket", "", "S3 bucket for periodic snapshots; empty disables them")
	f.StringVar(&opts.snapshotPrefix, "snapshot-prefix", "snapshots/", "S3 key prefix for snapshots")
	f.DurationVar(&opts.snapshotInterval, "snapshot-interval", time.Minute, "Interval between snapshots")
	f.StringVar(&opts.s3Region, "s3-region", "", "S3 region (default $AWS_REGION)")
	f.StringVar(&opts.s3Endpoint, "s3-endpoint", "", "S3 endpoint override, e.g. for MinIO")
	f.BoolVar(&opts.s3PathStyle, "s3-path-style", false, "Use path-style S3 addressing")

	return cmd
}

// serveApp holds the wired server and its collaborators.
type serveApp struct {
	logger   vncserver.Logger
	registry *prometheus.Registry
	touch    *vncserver.TouchBridge
	bridge   *wsbridge.Listener
	srv      *vncserver.Server
}

// newServeApp maps the command line options onto a server.
func newServeApp(opts serveOptions) (*serveApp, error) {
	level, err := vncserver.ParseLevel(opts.logLevel)
	if err != nil {
		return nil, err
	}
	logger := &vncserver.StandardLogger{
		Logger:   log.New(os.Stderr, "vncserver: ", log.LstdFlags|log.Lmicroseconds),
		MinLevel: level,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(metrics.WithRegistry(registry))

	touch := vncserver.NewTouchBridge()
	touch.OnUpdate(func(s vncserver.TouchState) {
		logger.Debug("touch", vncserver.Field{Key: "touching", Value: s.Touching}, vncserver.Field{Key: "x", Value: s.X}, vncserver.Field{Key: "y", Value: s.Y})
	})

	serverOpts := []vncserver.ServerOption{
		vncserver.WithAddress(opts.address),
		vncserver.WithPort(opts.port),
		vncserver.WithName(opts.name),
		vncserver.WithRotation(vncserver.Rotation(opts.rotation)),
		vncserver.WithQueueCapacity(opts.queue),
		vncserver.WithScratchSize(opts.scratch),
		vncserver.WithLogger(logger),
		vncserver.WithMetrics(collector),
		vncserver.WithPointerHandler(touch),
		vncserver.WithOnConnect(func(info vncserver.SessionInfo) {
			logger.Info("viewer connected", vncserver.Field{Key: "remote", Value: info.Remote})
		}),
	}

	var bridge *wsbridge.Listener
	if opts.httpAddr != "" {
		bridge = wsbridge.NewListener(admin.PathDisplay, wsbridge.WithLogger(logger))
		serverOpts = append(serverOpts, vncserver.WithListener(bridge))
	}

	srv, err := vncserver.NewServer(opts.width, opts.height, serverOpts...)
	if err != nil {
		return nil, err
	}

	return &serveApp{
		logger:   logger,
		registry: registry,
		touch:    touch,
		bridge:   bridge,
		srv:      srv,
	}, nil
}

func runServe(parent context.Context, opts serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}

	app, err := newServeApp(opts)
	if err != nil {
		return err
	}
	logger, srv := app.logger, app.srv

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.httpAddr != "" {
		httpSrv := &http.Server{
			Addr: opts.httpAddr,
			Handler: admin.NewRouter(admin.Config{
				Status:   srv,
				Snapshot: srv.Framebuffer(),
				Gatherer: app.registry,
				Display:  app.bridge,
				Logger:   logger,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("admin endpoint listening", vncserver.Field{Key: "address", Value: opts.httpAddr})
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin endpoint failed", vncserver.Field{Key: "error", Value: err})
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
	}

	if opts.demo {
		go newDemo(srv.Framebuffer(), app.touch).run(ctx, opts.fps)
	}

	if opts.snapshotBucket != "" {
		client := snapshot.NewS3Client(snapshot.S3Config{
			Region:       opts.s3Region,
			Endpoint:     opts.s3Endpoint,
			UsePathStyle: opts.s3PathStyle,
		})
		uploader := snapshot.NewS3Uploader(client, opts.snapshotBucket, opts.snapshotPrefix, logger)
		go uploader.Run(ctx, srv.Framebuffer(), opts.snapshotInterval)
	}

	return srv.ListenAndServe(ctx)
}
