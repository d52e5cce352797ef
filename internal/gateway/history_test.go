// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/bridgeai/internal/config"
)

// historyContract runs the behaviour every HistoryStore must share. The
// store must cap sessions at 4 messages.
func historyContract(t *testing.T, h HistoryStore) {
	ctx := context.Background()

	turns, err := h.Recent(ctx, "missing", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)

	for i := 1; i <= 3; i++ {
		require.NoError(t, h.Append(ctx, "s1",
			Turn{RoleUser, fmt.Sprintf("q%d", i)},
			Turn{RoleAssistant, fmt.Sprintf("a%d", i)},
		))
	}

	turns, err = h.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, []Turn{
		{RoleUser, "q2"}, {RoleAssistant, "a2"},
		{RoleUser, "q3"}, {RoleAssistant, "a3"},
	}, turns, "oldest messages are dropped first")

	turns, err = h.Recent(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, []Turn{{RoleUser, "q3"}, {RoleAssistant, "a3"}}, turns)

	require.NoError(t, h.Append(ctx, "s2", Turn{RoleUser, "other"}))
	require.NoError(t, h.Clear(ctx, "s1"))
	require.NoError(t, h.Clear(ctx, "never-existed"))

	turns, err = h.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)

	turns, err = h.Recent(ctx, "s2", 0)
	require.NoError(t, err)
	assert.Equal(t, []Turn{{RoleUser, "other"}}, turns)
}

func TestMemoryHistory(t *testing.T) {
	historyContract(t, NewMemoryHistory(4))
}

func TestMemoryHistory_RecentReturnsCopy(t *testing.T) {
	h := NewMemoryHistory(4)
	ctx := context.Background()
	require.NoError(t, h.Append(ctx, "s", Turn{RoleUser, "q"}))

	turns, _ := h.Recent(ctx, "s", 0)
	turns[0].Content = "changed"

	again, _ := h.Recent(ctx, "s", 0)
	assert.Equal(t, "q", again[0].Content)
}

func TestMemoryHistory_Prune(t *testing.T) {
	h := NewMemoryHistory(4)
	ctx := context.Background()
	require.NoError(t, h.Append(ctx, "old", Turn{RoleUser, "q"}))
	require.NoError(t, h.Append(ctx, "new", Turn{RoleUser, "q"}))

	assert.Equal(t, 0, h.Prune(time.Hour))

	h.mu.Lock()
	h.touched["old"] = time.Now().Add(-2 * time.Hour)
	h.mu.Unlock()

	assert.Equal(t, 1, h.Prune(time.Hour))
	assert.Equal(t, 1, h.Sessions())
}

func TestSQLiteHistory(t *testing.T) {
	h, err := OpenSQLiteHistory(":memory:", 4)
	require.NoError(t, err)
	defer h.Close()

	historyContract(t, h)
}

func TestSQLiteHistory_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	ctx := context.Background()

	h, err := OpenSQLiteHistory(path, 4)
	require.NoError(t, err)
	require.NoError(t, h.Append(ctx, "s", Turn{RoleUser, "remember me"}))
	require.NoError(t, h.Close())

	h, err = OpenSQLiteHistory(path, 4)
	require.NoError(t, err)
	defer h.Close()

	turns, err := h.Recent(ctx, "s", 0)
	require.NoError(t, err)
	assert.Equal(t, []Turn{{RoleUser, "remember me"}}, turns)
}

func TestSQLiteHistory_EmptyPath(t *testing.T) {
	_, err := OpenSQLiteHistory("", 4)
	assert.Error(t, err)
}

func TestRedisHistory_BadURL(t *testing.T) {
	_, err := NewRedisHistory("", 4, time.Hour)
	assert.Error(t, err)

	_, err = NewRedisHistory("not-a-redis-url", 4, time.Hour)
	assert.Error(t, err)
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "bridgeai:history:abc", redisKey("abc"))
}

func TestNewHistoryStore(t *testing.T) {
	cfg := config.Default().Gateway

	cfg.HistoryBackend = "memory"
	h, err := NewHistoryStore(cfg)
	require.NoError(t, err)
	mem, ok := h.(*MemoryHistory)
	require.True(t, ok)
	assert.Equal(t, cfg.HistoryTurns*2, mem.maxMessages)

	cfg.HistoryBackend = "sqlite"
	cfg.HistoryPath = filepath.Join(t.TempDir(), "h.db")
	h, err = NewHistoryStore(cfg)
	require.NoError(t, err)
	_, ok = h.(*SQLiteHistory)
	assert.True(t, ok)
	require.NoError(t, h.Close())

	cfg.HistoryBackend = "redis"
	cfg.RedisURL = ""
	_, err = NewHistoryStore(cfg)
	assert.Error(t, err)

	cfg.HistoryBackend = "etcd"
	_, err = NewHistoryStore(cfg)
	assert.Error(t, err)
}
