// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

// Command praxis runs the capability engine: an HTTP+JSON API by default,
// or an MCP stdio server with -mcp / server.mcp.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/praxis-ai/praxis/pkg/api"
	"github.com/praxis-ai/praxis/pkg/config"
	praxismcp "github.com/praxis-ai/praxis/pkg/mcp"
	"github.com/praxis-ai/praxis/pkg/runtime"
	"github.com/praxis-ai/praxis/pkg/session"
	"github.com/praxis-ai/praxis/pkg/telemetry"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "praxis:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to config YAML")
		addr       = flag.String("addr", "", "listen address override")
		mcpMode    = flag.Bool("mcp", false, "serve MCP over stdio instead of HTTP")
		tenant     = flag.String("tenant", "", "tenant for MCP stdio sessions")
		caller     = flag.String("caller", "", "caller for MCP stdio sessions")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *mcpMode {
		cfg.Server.MCP = true
	}

	logOutput := os.Stdout
	if cfg.Server.MCP {
		// Stdout carries the MCP protocol; logs must not corrupt it.
		logOutput = os.Stderr
	}
	logger := telemetry.ConfigureSlog(logOutput, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitWithConfig("praxis", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry.shutdown.error", "error", err)
		}
	}()

	rt, err := runtime.NewLocal(cfg)
	if err != nil {
		return err
	}
	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.Stop(stopCtx); err != nil {
			slog.Warn("runtime.stop.error", "error", err)
		}
	}()

	if cfg.Server.MCP {
		return serveMCP(rt, *tenant, *caller)
	}
	return serveHTTP(ctx, cfg.Server.Addr, rt)
}

func serveHTTP(ctx context.Context, addr string, rt *runtime.LocalRuntime) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           api.New(rt.Orchestrator(), rt.Registry(), rt.Store()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server.listen", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("server.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func serveMCP(rt *runtime.LocalRuntime, tenant, caller string) error {
	identity := session.Identity{Tenant: tenant, Caller: caller}
	server := praxismcp.NewServer("praxis", version, rt.Orchestrator(), rt.Registry(), identity)
	slog.Info("server.mcp.stdio", "tenant", tenant)
	return server.ServeStdio()
}
