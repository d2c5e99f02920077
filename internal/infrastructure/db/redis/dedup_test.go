package redis

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testClient *redis.Client

func startRedis(ctx context.Context) (string, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:8.4-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}

	cont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Fatalf("failed to start redis container: %v", err)
	}

	host, err := cont.Host(ctx)
	if err != nil {
		log.Fatalf("failed to get host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "6379")
	if err != nil {
		log.Fatalf("failed to get port: %v", err)
	}

	return host + ":" + port.Port(), func() { _ = cont.Terminate(ctx) }
}

func TestMain(m *testing.M) {
	if os.Getenv("BUYTIME_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	addr, closer := startRedis(ctx)

	client, err := Connect(ctx, Config{Addr: addr})
	if err != nil {
		closer()
		log.Fatalf("failed to connect: %v", err)
	}
	testClient = client

	code := m.Run()
	_ = client.Close()
	closer()
	os.Exit(code)
}

func TestDeliveryDedup(t *testing.T) {
	if testClient == nil {
		t.Skip("set BUYTIME_INTEGRATION=1 to run redis tests")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	dedup := NewDeliveryDedup(testClient, time.Minute)

	seen, err := dedup.IsProcessed(ctx, "msg_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, dedup.MarkProcessed(ctx, "msg_1"))

	seen, err = dedup.IsProcessed(ctx, "msg_1")
	require.NoError(t, err)
	assert.True(t, seen)

	ttl, err := testClient.TTL(ctx, "webhook:delivery:msg_1").Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Minute)

	seen, err = dedup.IsProcessed(ctx, "msg_2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestDeliveryDedup_DefaultTTL(t *testing.T) {
	d := NewDeliveryDedup(nil, 0)
	assert.Equal(t, DefaultDedupTTL, d.ttl)
	assert.Equal(t, "webhook:delivery:abc", d.key("abc"))
}
