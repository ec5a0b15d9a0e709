// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/praxis-ai/praxis/pkg/config"
	"github.com/praxis-ai/praxis/pkg/session"
)

const testRegistry = `
capabilities:
  - id: ping.send
    name: Send ping
    binding:
      type: inprocess
    fields:
      - name: target
        required: true
`

func writeTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	registryPath := filepath.Join(dir, "capabilities.yaml")
	if err := os.WriteFile(registryPath, []byte(testRegistry), 0o600); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Registry.Path = registryPath
	cfg.LLM.Provider = "none"
	cfg.Sweep.Interval = 0
	return cfg
}

func TestNewLocalAssemblesEngine(t *testing.T) {
	cfg := writeTestConfig(t)

	r, err := NewLocal(cfg)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop(context.Background())

	r.Handlers().Register("ping.send", func(_ context.Context, args map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"echo": args["target"]}, nil
	})

	resp, err := r.Orchestrator().Handle(context.Background(), "ping.send",
		map[string]interface{}{"target": "gw-1"}, "c1", session.Identity{Tenant: "acme"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Status != session.StatusSubmitted {
		t.Fatalf("status = %q, want %q", resp.Status, session.StatusSubmitted)
	}
	payload, _ := resp.Payload.(map[string]interface{})
	if payload["echo"] != "gw-1" {
		t.Errorf("payload = %#v", resp.Payload)
	}
}

func TestNewLocalSQLiteBackend(t *testing.T) {
	cfg := writeTestConfig(t)
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLiteDSN = filepath.Join(t.TempDir(), "drafts.db")

	r, err := NewLocal(cfg)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if _, ok := r.Store().(*session.SQLiteStore); !ok {
		t.Fatalf("store is %T, want *session.SQLiteStore", r.Store())
	}
	if err := r.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestNewLocalUnknownBackend(t *testing.T) {
	cfg := writeTestConfig(t)
	cfg.Store.Backend = "cassandra"

	if _, err := NewLocal(cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestSweeperReclaimsExpiredDrafts(t *testing.T) {
	cfg := writeTestConfig(t)
	cfg.Sweep.Interval = 20 * time.Millisecond

	r, err := NewLocal(cfg)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	draft := session.NewDraft(
		session.Key{CapabilityID: "ping.send", ConversationID: "stale"},
		session.Identity{Tenant: "acme"},
	)
	draft.ExpiresAt = time.Now().Add(-time.Hour)
	if err := r.Store().Save(context.Background(), draft); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := r.Store().Load(context.Background(), draft.Key())
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expired draft was never swept")
}
