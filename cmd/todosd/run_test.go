package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todos-api/internal/config"
	xerrors "todos-api/internal/errors"
	"todos-api/internal/events"
	"todos-api/internal/observability/alerting"
	"todos-api/internal/todo"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("", "")
	require.NoError(t, err)
	return cfg
}

func TestOpenStore(t *testing.T) {
	connectBackoff = time.Millisecond

	t.Run("Should build a seeded memory store", func(t *testing.T) {
		store, err := openStore(context.Background(), testConfig(t))
		require.NoError(t, err)
		todos, err := store.GetTodos(context.Background())
		require.NoError(t, err)
		assert.Len(t, todos, 2)
	})

	t.Run("Should open a sqlite store", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Driver = "sqlite"
		cfg.Store.DSN = filepath.Join(t.TempDir(), "todos.db")
		store, err := openStore(context.Background(), cfg)
		require.NoError(t, err)
		defer store.Close()

		added, err := store.AddTodo(context.Background(), "Buy milk")
		require.NoError(t, err)
		assert.Equal(t, todo.StatusIncomplete, added.Status)
	})

	t.Run("Should open a redis store", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig(t)
		cfg.Store.Driver = "redis"
		cfg.Redis.Address = mr.Addr()
		store, err := openStore(context.Background(), cfg)
		require.NoError(t, err)
		defer store.Close()
		assert.True(t, mr.Exists("todos:items"))
	})

	t.Run("Should give up after the configured retries", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		cfg := testConfig(t)
		cfg.Store.Driver = "redis"
		cfg.Redis.Address = addr
		cfg.Store.ConnectRetries = 1
		_, err := openStore(context.Background(), cfg)
		assert.Equal(t, todo.CodeStoreUnavailable, xerrors.CodeOf(err))
	})

	t.Run("Should not retry an encoding mismatch", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Driver = "sqlite"
		cfg.Store.DSN = filepath.Join(t.TempDir(), "todos.db")
		store, err := openStore(context.Background(), cfg)
		require.NoError(t, err)
		require.NoError(t, store.Close())

		cfg.Store.StatusEncoding = string(todo.EncodingIncompleteFirst)
		_, err = openStore(context.Background(), cfg)
		assert.ErrorIs(t, err, todo.ErrStatusEncodingMismatch)
	})
}

func TestNewPublisher(t *testing.T) {
	t.Run("Should default to a no-op publisher", func(t *testing.T) {
		pub, err := newPublisher(context.Background(), testConfig(t))
		require.NoError(t, err)
		assert.IsType(t, events.NopPublisher{}, pub)
	})

	t.Run("Should build a memory publisher", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Events.Driver = "memory"
		pub, err := newPublisher(context.Background(), cfg)
		require.NoError(t, err)
		assert.NoError(t, pub.PublishTodoAdded(context.Background(), todo.New("x")))
		assert.NoError(t, pub.Close())
	})

	t.Run("Should build a redis publisher", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig(t)
		cfg.Events.Driver = "redis"
		cfg.Redis.Address = mr.Addr()
		pub, err := newPublisher(context.Background(), cfg)
		require.NoError(t, err)
		defer pub.Close()
		assert.IsType(t, &events.RedisPublisher{}, pub)
	})
}

func TestNewAlerts(t *testing.T) {
	cfg := testConfig(t)
	assert.Equal(t, []alerting.Channel{alerting.ChannelLog}, newAlerts(cfg).Channels())

	cfg.Alerting.WebhookURL = "http://alerts.local/hook"
	assert.Equal(t, []alerting.Channel{alerting.ChannelLog, alerting.ChannelWebhook}, newAlerts(cfg).Channels())
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"config", "env-file", "store", "addr"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}
