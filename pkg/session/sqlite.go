// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/praxis-ai/praxis/pkg/errors"

	_ "modernc.org/sqlite"
)

const draftTable = "praxis_drafts"

// SQLiteStore persists drafts in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed draft store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := ensureDraftSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteStore opens (or creates) the database at dsn and builds a store.
func OpenSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeErr("open sqlite store", err)
	}
	return NewSQLiteStore(db)
}

func ensureDraftSchema(db *sql.DB) error {
	_, err := db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		capability_id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		id TEXT NOT NULL,
		tenant TEXT NOT NULL DEFAULT '',
		caller TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		values_json TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (capability_id, conversation_id)
	)`, draftTable))
	if err != nil {
		return storeErr("ensure draft schema", err)
	}
	return nil
}

// Load returns the draft for key, or (nil, nil) when absent.
func (s *SQLiteStore) Load(ctx context.Context, key Key) (*Draft, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, tenant, caller, status, values_json, created_at, updated_at, expires_at FROM %s WHERE capability_id = ? AND conversation_id = ?", draftTable),
		key.CapabilityID, key.ConversationID,
	)
	var (
		draft       Draft
		status      string
		valuesJSON  string
		createdAtMs int64
		updatedAtMs int64
		expiresAtMs int64
	)
	err := row.Scan(&draft.ID, &draft.Identity.Tenant, &draft.Identity.Caller, &status, &valuesJSON, &createdAtMs, &updatedAtMs, &expiresAtMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("load draft", err)
	}
	draft.CapabilityID = key.CapabilityID
	draft.ConversationID = key.ConversationID
	draft.Status = Status(status)
	draft.CreatedAt = time.UnixMilli(createdAtMs).UTC()
	draft.UpdatedAt = time.UnixMilli(updatedAtMs).UTC()
	if expiresAtMs > 0 {
		draft.ExpiresAt = time.UnixMilli(expiresAtMs).UTC()
	}
	draft.Values = make(map[string]interface{})
	if valuesJSON != "" {
		if err := json.Unmarshal([]byte(valuesJSON), &draft.Values); err != nil {
			return nil, storeErr("decode draft values", err)
		}
	}
	return &draft, nil
}

// Save upserts the draft under its key.
func (s *SQLiteStore) Save(ctx context.Context, draft *Draft) error {
	valuesJSON, err := json.Marshal(draft.Values)
	if err != nil {
		return storeErr("encode draft values", err)
	}
	now := time.Now().UTC()
	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	expiresAt := int64(0)
	if !draft.ExpiresAt.IsZero() {
		expiresAt = draft.ExpiresAt.UnixMilli()
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (capability_id, conversation_id, id, tenant, caller, status, values_json, created_at, updated_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(capability_id, conversation_id) DO UPDATE SET
				id = excluded.id,
				tenant = excluded.tenant,
				caller = excluded.caller,
				status = excluded.status,
				values_json = excluded.values_json,
				updated_at = excluded.updated_at,
				expires_at = excluded.expires_at`, draftTable),
		draft.CapabilityID, draft.ConversationID, draft.ID,
		draft.Identity.Tenant, draft.Identity.Caller, string(draft.Status),
		string(valuesJSON), createdAt.UnixMilli(), now.UnixMilli(), expiresAt)
	if err != nil {
		return storeErr("save draft", err)
	}
	return nil
}

// Delete removes the draft for key.
func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE capability_id = ? AND conversation_id = ?", draftTable),
		key.CapabilityID, key.ConversationID)
	if err != nil {
		return storeErr("delete draft", err)
	}
	return nil
}

// ExpireBefore removes drafts whose expiry is set and before cutoff.
func (s *SQLiteStore) ExpireBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE expires_at > 0 AND expires_at < ?", draftTable),
		cutoff.UnixMilli())
	if err != nil {
		return 0, storeErr("expire drafts", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("count expired drafts", err)
	}
	return int(n), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func storeErr(msg string, cause error) error {
	return errors.New(errors.CodeDraftStore, msg, cause)
}
