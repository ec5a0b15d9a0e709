// SPDX-License-Identifier: Apache-2.0
package session

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

type storeUnderTest struct {
	Store
	Expirer
}

func openStores(t *testing.T) map[string]storeUnderTest {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	sqlite, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	memory := NewMemoryStore()
	return map[string]storeUnderTest{
		"memory": {memory, memory},
		"sqlite": {sqlite, sqlite},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := Key{CapabilityID: "unit:create", ConversationID: "conv-1"}

			if loaded, err := store.Load(ctx, key); err != nil || loaded != nil {
				t.Fatalf("expected (nil, nil) for absent draft, got (%v, %v)", loaded, err)
			}

			draft := NewDraft(key, Identity{Tenant: "acme", Caller: "u-1"})
			draft.Set("name", "个")
			draft.Set("count", 3)
			draft.Status = StatusMissingFields
			if err := store.Save(ctx, draft); err != nil {
				t.Fatalf("save: %v", err)
			}

			loaded, err := store.Load(ctx, key)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if loaded == nil {
				t.Fatal("expected draft, got nil")
			}
			if loaded.Status != StatusMissingFields {
				t.Errorf("unexpected status %q", loaded.Status)
			}
			if loaded.Identity.Tenant != "acme" || loaded.Identity.Caller != "u-1" {
				t.Errorf("identity not persisted: %+v", loaded.Identity)
			}
			if loaded.Values["name"] != "个" {
				t.Errorf("value not persisted: %v", loaded.Values)
			}

			loaded.Set("name", "updated")
			loaded.Status = StatusAwaitingConfirmation
			if err := store.Save(ctx, loaded); err != nil {
				t.Fatalf("resave: %v", err)
			}
			again, err := store.Load(ctx, key)
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if again.Values["name"] != "updated" || again.Status != StatusAwaitingConfirmation {
				t.Errorf("update not persisted: %+v", again)
			}

			if err := store.Delete(ctx, key); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if gone, err := store.Load(ctx, key); err != nil || gone != nil {
				t.Fatalf("expected draft gone, got (%v, %v)", gone, err)
			}
			// Deleting an absent key is a no-op.
			if err := store.Delete(ctx, key); err != nil {
				t.Fatalf("delete absent: %v", err)
			}
		})
	}
}

func TestStoreExpireBefore(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC()

			stale := NewDraft(Key{CapabilityID: "c", ConversationID: "old"}, Identity{})
			stale.Set("x", "1")
			stale.ExpiresAt = now.Add(-time.Hour)
			fresh := NewDraft(Key{CapabilityID: "c", ConversationID: "new"}, Identity{})
			fresh.Set("x", "2")
			fresh.ExpiresAt = now.Add(time.Hour)
			eternal := NewDraft(Key{CapabilityID: "c", ConversationID: "keep"}, Identity{})
			eternal.Set("x", "3")

			for _, d := range []*Draft{stale, fresh, eternal} {
				if err := store.Save(ctx, d); err != nil {
					t.Fatalf("save: %v", err)
				}
			}

			removed, err := store.ExpireBefore(ctx, now)
			if err != nil {
				t.Fatalf("expire: %v", err)
			}
			if removed != 1 {
				t.Fatalf("expected 1 expired draft, got %d", removed)
			}
			if d, _ := store.Load(ctx, stale.Key()); d != nil {
				t.Errorf("stale draft should be gone")
			}
			if d, _ := store.Load(ctx, fresh.Key()); d == nil {
				t.Errorf("fresh draft should remain")
			}
			if d, _ := store.Load(ctx, eternal.Key()); d == nil {
				t.Errorf("draft without expiry should remain")
			}
		})
	}
}

func TestSQLiteExpireBeforeSurfacesFailure(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	_ = db.Close()

	// A sweep that cannot run must report an error, never a clean zero.
	if _, err := store.ExpireBefore(context.Background(), time.Now().UTC()); err == nil {
		t.Fatal("expected an error from ExpireBefore on a closed store")
	}
}

func TestDraftBlankInvariant(t *testing.T) {
	draft := NewDraft(Key{CapabilityID: "c", ConversationID: "v"}, Identity{})
	draft.Set("name", "value")
	draft.Set("empty", "")
	draft.Set("spaces", "   ")
	draft.Set("nil", nil)
	draft.Set("zero", 0)
	draft.Set("no", false)

	if _, ok := draft.Values["empty"]; ok {
		t.Errorf("blank string stored")
	}
	if _, ok := draft.Values["spaces"]; ok {
		t.Errorf("whitespace string stored")
	}
	if _, ok := draft.Values["nil"]; ok {
		t.Errorf("nil stored")
	}
	if _, ok := draft.Values["zero"]; !ok {
		t.Errorf("zero is a real value, must be stored")
	}
	if _, ok := draft.Values["no"]; !ok {
		t.Errorf("false is a real value, must be stored")
	}

	// Setting a blank clears a previously collected value.
	draft.Set("name", " ")
	if _, ok := draft.Values["name"]; ok {
		t.Errorf("blank did not clear prior value")
	}
}

func TestLockerSerializesSameKey(t *testing.T) {
	locker := NewLocker()
	key := Key{CapabilityID: "c", ConversationID: "v"}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unlock := locker.Lock(key)
			defer unlock()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	if len(order) != 8 {
		t.Fatalf("expected 8 critical sections, got %d", len(order))
	}
}

func TestLockerIndependentKeysDoNotBlock(t *testing.T) {
	locker := NewLocker()
	unlockA := locker.Lock(Key{CapabilityID: "a", ConversationID: "1"})
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locker.Lock(Key{CapabilityID: "b", ConversationID: "1"})
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("independent key blocked")
	}
}
