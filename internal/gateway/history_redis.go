// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "bridgeai:history:"

// RedisHistory keeps each session as a Redis list of JSON turns, trimmed
// on every append and expiring after a period of inactivity. It lets
// several gateway replicas share sessions.
type RedisHistory struct {
	client      *redis.Client
	maxMessages int
	ttl         time.Duration
}

// NewRedisHistory connects to redisURL and verifies the server answers.
func NewRedisHistory(redisURL string, maxMessages int, ttl time.Duration) (*RedisHistory, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, errors.New("redis history: redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis history: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis history: ping: %w", err)
	}
	return newRedisHistory(client, maxMessages, ttl), nil
}

func newRedisHistory(client *redis.Client, maxMessages int, ttl time.Duration) *RedisHistory {
	if maxMessages <= 0 {
		maxMessages = DefaultHistoryTurns * 2
	}
	return &RedisHistory{client: client, maxMessages: maxMessages, ttl: ttl}
}

func redisKey(session string) string {
	return redisKeyPrefix + session
}

// Recent implements HistoryStore.
func (h *RedisHistory) Recent(ctx context.Context, session string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = h.maxMessages
	}
	raw, err := h.client.LRange(ctx, redisKey(session), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis history: lrange: %w", err)
	}
	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Append implements HistoryStore.
func (h *RedisHistory) Append(ctx context.Context, session string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]any, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		values = append(values, data)
	}

	key := redisKey(session)
	pipe := h.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-h.maxMessages), -1)
	if h.ttl > 0 {
		pipe.Expire(ctx, key, h.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis history: append: %w", err)
	}
	return nil
}

// Clear implements HistoryStore.
func (h *RedisHistory) Clear(ctx context.Context, session string) error {
	return h.client.Del(ctx, redisKey(session)).Err()
}

// Close implements HistoryStore.
func (h *RedisHistory) Close() error {
	return h.client.Close()
}
