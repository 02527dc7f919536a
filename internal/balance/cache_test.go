package balance

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}

func startRedis(t *testing.T) string {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") != "" {
		t.Skip("SKIP_INTEGRATION set")
	}
	if os.Getenv("CI") == "" && !isDockerAvailable() {
		t.Skip("docker not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	return endpoint
}

func TestRedisCache_RoundTrip(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	cache, err := NewRedisCache(ctx, RedisConfig{Addr: addr, Key: "crashline:balance:test", TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer cache.Close()

	if _, ok, err := cache.Load(ctx); err != nil || ok {
		t.Fatalf("Load on empty key = ok %v, err %v", ok, err)
	}

	if err := cache.Store(ctx, 1234.5); err != nil {
		t.Fatalf("Store: %v", err)
	}
	v, ok, err := cache.Load(ctx)
	if err != nil || !ok || v != 1234.5 {
		t.Errorf("Load = %v, %v, %v", v, ok, err)
	}

	if h := cache.Health(ctx); h["status"] != "up" {
		t.Errorf("Health = %v", h)
	}
}

func TestRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewRedisCache(ctx, RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestRedisCache_BadValue(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Set(ctx, "crashline:balance:bad", "not-a-number", 0).Err(); err != nil {
		t.Fatal(err)
	}

	cache := NewRedisCacheFromClient(client, "crashline:balance:bad", 0)
	if _, _, err := cache.Load(ctx); err == nil {
		t.Error("expected parse error")
	}
}
