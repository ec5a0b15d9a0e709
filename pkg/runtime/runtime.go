// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package runtime assembles the engine from configuration: the capability
// registry, draft store, permission rules, resolvers, and dispatch router,
// wired into one orchestrator with a background sweeper for expired drafts.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/config"
	"github.com/praxis-ai/praxis/pkg/dispatch"
	"github.com/praxis-ai/praxis/pkg/llm"
	"github.com/praxis-ai/praxis/pkg/orchestrator"
	"github.com/praxis-ai/praxis/pkg/permission"
	"github.com/praxis-ai/praxis/pkg/resolve"
	"github.com/praxis-ai/praxis/pkg/session"
	"github.com/praxis-ai/praxis/pkg/telemetry"
)

// LocalRuntime hosts one in-process engine instance.
type LocalRuntime struct {
	cfg      *config.Config
	registry *capability.Registry
	store    session.Store
	handlers *dispatch.HandlerRegistry
	orch     *orchestrator.Orchestrator
	metrics  *telemetry.EngineMetrics

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
	closeStore  func() error
}

// NewLocal builds a runtime from the configuration. In-process handlers can
// be registered on Handlers before serving traffic.
func NewLocal(cfg *config.Config) (*LocalRuntime, error) {
	registry, err := capability.LoadFile(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	r := &LocalRuntime{cfg: cfg, registry: registry, handlers: dispatch.NewHandlerRegistry()}
	if err := r.openStore(); err != nil {
		return nil, err
	}

	perms, err := loadPermissions(cfg.Permission.RulesPath)
	if err != nil {
		return nil, err
	}

	var resolver *resolve.Resolver
	if cfg.Lookup.BaseURL != "" {
		provider := resolve.NewHTTPOptionProvider(cfg.Lookup.BaseURL, nil)
		resolver = resolve.NewResolver(provider, cfg.Timeouts.Lookup)
	}

	var inferencer *resolve.Inferencer
	if provider := llmProvider(cfg.LLM); provider != nil {
		inferencer = resolve.NewInferencer(provider, cfg.LLM.Model, cfg.Timeouts.Inference)
	}

	providers := dispatch.NewProviderRegistry()
	for _, p := range cfg.Providers {
		tokens := dispatch.NewTokenCache(dispatch.NewHTTPTokenExchanger(p.TokenURL, nil))
		providers.Register(p.Code, dispatch.NewHTTPProvider(p.Code, p.BaseURL, nil, tokens, cfg.Timeouts.Provider))
	}

	direct := dispatch.NewDirectExecutor(http.DefaultClient, cfg.Timeouts.Endpoint)
	router := dispatch.NewRouter(direct, providers, r.handlers)

	metrics, err := telemetry.NewEngineMetrics()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	r.orch = orchestrator.New(orchestrator.Config{
		Registry:    registry,
		Store:       r.store,
		Resolver:    resolver,
		Inferencer:  inferencer,
		Permissions: perms,
		Router:      router,
		Metrics:     metrics,
		DraftTTL:    cfg.Sweep.TTL,
	})
	r.metrics = metrics
	return r, nil
}

// Orchestrator returns the assembled engine entry point.
func (r *LocalRuntime) Orchestrator() *orchestrator.Orchestrator { return r.orch }

// Registry returns the loaded capability registry.
func (r *LocalRuntime) Registry() *capability.Registry { return r.registry }

// Store returns the draft store.
func (r *LocalRuntime) Store() session.Store { return r.store }

// Handlers returns the in-process handler registry for BindingInProcess
// capabilities.
func (r *LocalRuntime) Handlers() *dispatch.HandlerRegistry { return r.handlers }

// Start launches background work. It returns immediately.
func (r *LocalRuntime) Start(_ context.Context) error {
	r.startSweeper()
	return nil
}

// Stop halts background work and releases the store.
func (r *LocalRuntime) Stop(_ context.Context) error {
	r.stopSweeper()
	if r.closeStore != nil {
		if err := r.closeStore(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}

func (r *LocalRuntime) openStore() error {
	switch r.cfg.Store.Backend {
	case "", "memory":
		r.store = session.NewMemoryStore()
	case "sqlite":
		store, err := session.OpenSQLiteStore(r.cfg.Store.SQLiteDSN)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		r.store = store
		r.closeStore = store.Close
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: r.cfg.Store.RedisAddr})
		r.store = session.NewRedisStore(client)
		r.closeStore = client.Close
	default:
		return fmt.Errorf("unknown store backend %q", r.cfg.Store.Backend)
	}
	slog.Info("runtime.store.open", "backend", r.cfg.Store.Backend)
	return nil
}

func loadPermissions(path string) (permission.Service, error) {
	if path == "" {
		slog.Warn("runtime.permissions.allow_all", "reason", "no rules file configured")
		return permission.AllowAll(), nil
	}
	rules, err := permission.LoadRulesFile(path)
	if err != nil {
		return nil, fmt.Errorf("load permission rules: %w", err)
	}
	return rules, nil
}

func llmProvider(cfg config.LLMConfig) llm.Provider {
	switch cfg.Provider {
	case "ollama":
		return llm.NewOllama(cfg.BaseURL)
	case "", "none":
		return nil
	default:
		slog.Warn("runtime.llm.unknown_provider", "provider", cfg.Provider)
		return nil
	}
}
