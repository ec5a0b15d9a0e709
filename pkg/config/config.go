// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the process configuration from YAML with PRAXIS_
// environment overrides. The capability registry itself is loaded once at
// startup; changing it requires a restart.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Server     ServerConfig     `koanf:"server"`
	Registry   RegistryConfig   `koanf:"registry"`
	Store      StoreConfig      `koanf:"store"`
	Permission PermissionConfig `koanf:"permission"`
	Lookup     LookupConfig     `koanf:"lookup"`
	Providers  []ProviderConfig `koanf:"providers"`
	LLM        LLMConfig        `koanf:"llm"`
	Timeouts   TimeoutConfig    `koanf:"timeouts"`
	Sweep      SweepConfig      `koanf:"sweep"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
	// MCP serves the capability set over MCP stdio instead of HTTP.
	MCP bool `koanf:"mcp"`
}

type RegistryConfig struct {
	Path string `koanf:"path"`
}

type StoreConfig struct {
	Backend   string `koanf:"backend"` // memory, sqlite, redis
	SQLiteDSN string `koanf:"sqlite_dsn"`
	RedisAddr string `koanf:"redis_addr"`
}

type PermissionConfig struct {
	RulesPath string `koanf:"rules_path"`
}

// LookupConfig points field lookups at a backend action base URL. An empty
// base URL disables the lookup pass.
type LookupConfig struct {
	BaseURL string `koanf:"base_url"`
}

// ProviderConfig binds a provider code to its gateway and token endpoint.
type ProviderConfig struct {
	Code     string `koanf:"code"`
	BaseURL  string `koanf:"base_url"`
	TokenURL string `koanf:"token_url"`
}

type LLMConfig struct {
	Provider string `koanf:"provider"` // ollama, none
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
}

// TimeoutConfig bounds each class of external call independently.
type TimeoutConfig struct {
	Provider  time.Duration `koanf:"provider"`
	Endpoint  time.Duration `koanf:"endpoint"`
	Lookup    time.Duration `koanf:"lookup"`
	Inference time.Duration `koanf:"inference"`
}

// SweepConfig controls the expired-draft sweeper.
type SweepConfig struct {
	Interval time.Duration `koanf:"interval"`
	TTL      time.Duration `koanf:"ttl"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("telemetry.exporter", "stdout")
	k.Set("server.addr", ":8080")
	k.Set("registry.path", "capabilities.yaml")
	k.Set("store.backend", "memory")
	k.Set("store.sqlite_dsn", "praxis.db")
	k.Set("store.redis_addr", "localhost:6379")
	k.Set("llm.provider", "ollama")
	k.Set("llm.model", "qwen2.5-coder:7b-instruct-q5_K_M")
	k.Set("llm.base_url", "http://localhost:11434")
	k.Set("timeouts.provider", "15s")
	k.Set("timeouts.endpoint", "15s")
	k.Set("timeouts.lookup", "5s")
	k.Set("timeouts.inference", "30s")
	k.Set("sweep.interval", "5m")
	k.Set("sweep.ttl", "24h")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (PRAXIS_STORE_BACKEND -> store.backend)
	if err := k.Load(env.Provider("PRAXIS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "PRAXIS_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
