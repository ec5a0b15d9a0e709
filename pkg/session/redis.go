// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "praxis:draft:"

// RedisStore persists drafts in Redis. Draft expiry maps onto key TTLs, so
// Redis reclaims abandoned drafts on its own; ExpireBefore exists for parity
// with the other backends and sweeps drafts whose expiry predates their TTL.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed draft store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(key Key) string {
	return redisKeyPrefix + key.CapabilityID + ":" + key.ConversationID
}

// Load returns the draft for key, or (nil, nil) when absent.
func (s *RedisStore) Load(ctx context.Context, key Key) (*Draft, error) {
	payload, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("load draft", err)
	}
	var draft Draft
	if err := json.Unmarshal(payload, &draft); err != nil {
		return nil, storeErr("decode draft", err)
	}
	if draft.Values == nil {
		draft.Values = make(map[string]interface{})
	}
	return &draft, nil
}

// Save stores the draft, using its expiry as the key TTL when set.
func (s *RedisStore) Save(ctx context.Context, draft *Draft) error {
	copied := draft.Clone()
	copied.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(copied)
	if err != nil {
		return storeErr("encode draft", err)
	}
	ttl := time.Duration(0)
	if !copied.ExpiresAt.IsZero() {
		ttl = time.Until(copied.ExpiresAt)
		if ttl <= 0 {
			// Already expired; do not resurrect it.
			return s.Delete(ctx, draft.Key())
		}
	}
	if err := s.client.Set(ctx, redisKey(draft.Key()), payload, ttl).Err(); err != nil {
		return storeErr("save draft", err)
	}
	return nil
}

// Delete removes the draft for key.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return storeErr("delete draft", err)
	}
	return nil
}

// ExpireBefore scans draft keys and removes those expired before cutoff.
func (s *RedisStore) ExpireBefore(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		payload, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return removed, storeErr("scan drafts", err)
		}
		var draft Draft
		if err := json.Unmarshal(payload, &draft); err != nil {
			continue
		}
		if !draft.ExpiresAt.IsZero() && draft.ExpiresAt.Before(cutoff) {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return removed, storeErr("expire draft", err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, storeErr("scan drafts", err)
	}
	return removed, nil
}
