//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

func setupTestRedis(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForLog("Ready to accept connections").WithStartupTimeout(60*time.Second),
				wait.ForListeningPort("6379/tcp"),
			),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := New(ctx, ClientConfig{Addr: fmt.Sprintf("%s:%s", host, port.Port()), KeyPrefix: "test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLockManager(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	lm := NewLockManager(client)

	unlock, err := lm.Acquire(ctx, "cycle", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "cycle", time.Minute)
	require.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()

	unlock2, err := lm.Acquire(ctx, "cycle", time.Minute)
	require.NoError(t, err)
	unlock2()

	exists, err := client.Underlying().Exists(ctx, "test:lock:cycle").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestLockManagerRenewsWhileHeld(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	lm := NewLockManager(client)

	unlock, err := lm.Acquire(ctx, "cycle", 300*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(time.Second)
	_, err = lm.Acquire(ctx, "cycle", 300*time.Millisecond)
	require.ErrorIs(t, err, domain.ErrLockHeld, "a long cycle keeps its lock")

	unlock()
	unlock2, err := lm.Acquire(ctx, "cycle", 300*time.Millisecond)
	require.NoError(t, err)
	unlock2()
}

func TestSignalBusPubSubAndStream(t *testing.T) {
	client := setupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	bus := NewSignalBus(client)

	ch, err := bus.Subscribe(ctx, "arb")
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, "arb", []byte(`{"team":"Real Madrid"}`)))

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"team":"Real Madrid"}`, string(msg))
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	empty, err := bus.StreamRead(ctx, "arb:history", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, bus.StreamAppend(ctx, "arb:history", []byte("one")))
	require.NoError(t, bus.StreamAppend(ctx, "arb:history", []byte("two")))
	msgs, err := bus.StreamRead(ctx, "arb:history", "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", string(msgs[1].Payload))
}

func TestOpportunityCache(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	cache := NewOpportunityCache(client, time.Minute)

	_, err := cache.Latest(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, cache.SetLatest(ctx, []domain.Opportunity{{ID: "a", WorstCase: 0.89}, {ID: "b", WorstCase: 0.17}}))
	got, err := cache.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)

	require.NoError(t, cache.SetLatest(ctx, nil))
	got, err = cache.Latest(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
