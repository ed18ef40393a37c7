// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package httpserver handles the internal web server for sflowhdr.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"time"

	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"gopkg.in/tomb.v2"

	"sflowhdr/common/daemon"
	"sflowhdr/common/reporter"
)

// Component represents the HTTP component.
type Component struct {
	r      *reporter.Reporter
	d      *Dependencies
	t      tomb.Tomb
	config Configuration

	mux     *http.ServeMux
	metrics metrics
	address net.Addr

	// GinRouter is the router exposed for /api
	GinRouter  *gin.Engine
	cacheStore persist.CacheStore
}

// Dependencies define the dependencies of the HTTP component.
type Dependencies struct {
	Daemon daemon.Component
}

// Requests to these paths are polled by monitoring and only logged at
// debug level.
var quietPaths = map[string]bool{
	"/api/v0/metrics":           true,
	"/api/v0/healthcheck":       true,
	"/api/v0/inlet/healthcheck": true,
	"/api/v0/inlet/flow/recent": true,
}

// New creates a new HTTP component.
func New(r *reporter.Reporter, configuration Configuration, dependencies Dependencies) (*Component, error) {
	cacheStore, err := configuration.Cache.Config.New()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize HTTP cache: %w", err)
	}
	c := Component{
		r:      r,
		d:      &dependencies,
		config: configuration,

		mux:        http.NewServeMux(),
		GinRouter:  gin.New(),
		cacheStore: cacheStore,
	}
	c.initMetrics()
	c.d.Daemon.Track(&c.t, "common/httpserver")
	c.GinRouter.Use(gin.Recovery())
	c.AddHandler("/api/", c.GinRouter)
	if configuration.Profiler {
		c.enableProfiler()
	}
	return &c, nil
}

func (c *Component) enableProfiler() {
	c.mux.HandleFunc("/debug/pprof/", pprof.Index)
	c.mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	c.mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	c.mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	c.mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	runtime.SetBlockProfileRate(int(10 * time.Millisecond))
	runtime.SetMutexProfileFraction(1000)
}

// AddHandler registers a new handler for the web server. Requests are
// logged and instrumented.
func (c *Component) AddHandler(location string, handler http.Handler) {
	c.mux.Handle(location, c.instrument(location, handler))
}

func (c *Component) instrument(location string, handler http.Handler) http.Handler {
	accessLog := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		level := zerolog.InfoLevel
		if quietPaths[r.URL.Path] {
			level = zerolog.DebugLevel
		}
		hlog.FromRequest(r).WithLevel(level).
			Str("method", r.Method).
			Stringer("url", r.URL).
			Str("ip", r.RemoteAddr).
			Str("user-agent", r.Header.Get("User-Agent")).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("HTTP request")
	})
	labels := prometheus.Labels{"handler": location}
	handler = hlog.NewHandler(c.r.With().Str("handler", location).Logger())(accessLog(handler))
	handler = promhttp.InstrumentHandlerResponseSize(c.metrics.sizes.MustCurryWith(labels), handler)
	handler = promhttp.InstrumentHandlerCounter(c.metrics.requests.MustCurryWith(labels), handler)
	handler = promhttp.InstrumentHandlerDuration(c.metrics.durations.MustCurryWith(labels), handler)
	return promhttp.InstrumentHandlerInFlight(c.metrics.inflights, handler)
}

// Start starts the HTTP component. Without a listening address, the
// server is not started.
func (c *Component) Start() error {
	if c.config.Listen == "" {
		c.t.Go(func() error {
			<-c.t.Dying()
			return nil
		})
		return nil
	}

	c.r.Info().Str("listen", c.config.Listen).Msg("starting HTTP server")
	listener, err := net.Listen("tcp", c.config.Listen)
	if err != nil {
		return fmt.Errorf("unable to listen to %v: %w", c.config.Listen, err)
	}
	c.address = listener.Addr()
	c.serve(listener)
	return nil
}

func (c *Component) serve(listener net.Listener) {
	server := &http.Server{
		Addr:              listener.Addr().String(),
		Handler:           c.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	c.t.Go(func() error {
		err := server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		c.r.Err(err).Str("listen", c.config.Listen).Msg("HTTP server failed")
		return fmt.Errorf("HTTP server failed: %w", err)
	})
	c.t.Go(func() error {
		<-c.t.Dying()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			c.r.Err(err).Msg("unable to shutdown HTTP server")
			return fmt.Errorf("unable to shutdown HTTP server: %w", err)
		}
		return nil
	})
}

// Stop stops the HTTP component
func (c *Component) Stop() error {
	c.r.Info().Msg("stopping HTTP component")
	defer c.r.Info().Msg("HTTP component stopped")
	c.t.Kill(nil)
	return c.t.Wait()
}

// LocalAddr returns the address the HTTP server is listening to.
func (c *Component) LocalAddr() net.Addr {
	return c.address
}

func init() {
	// Exporters and brokers are reached directly.
	http.DefaultTransport.(*http.Transport).Proxy = nil
	http.DefaultClient.Timeout = 30 * time.Second
	gin.SetMode(gin.ReleaseMode)
}
