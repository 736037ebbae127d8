package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goerrors "github.com/goliatone/go-errors"
)

func TestConfig_RoundTripsThroughInternal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Redis = &RedisConfig{Addr: "cache:6379", Password: "secret", DB: 2, Namespace: "app:"}

	got := convertFromInternal(cfg.toInternal())

	if got.Backend != BackendMemory {
		t.Errorf("expected backend %q, got %q", BackendMemory, got.Backend)
	}
	if got.EarlyRefresh == nil || *got.EarlyRefresh != *cfg.EarlyRefresh {
		t.Errorf("expected early refresh %+v, got %+v", cfg.EarlyRefresh, got.EarlyRefresh)
	}
	if got.Redis == nil || *got.Redis != *cfg.Redis {
		t.Errorf("expected redis config %+v, got %+v", cfg.Redis, got.Redis)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("expected default config to be valid, got: %v", err)
	}

	cfg := DefaultConfig()
	cfg.TTL = 0
	err := cfg.Validate()
	if !goerrors.IsValidation(err) {
		t.Fatalf("expected validation error, got: %v", err)
	}
}

func TestNewCacheService_Memory(t *testing.T) {
	service, err := NewCacheService(DefaultConfig())
	if err != nil {
		t.Fatalf("expected no error but got: %v", err)
	}
	defer Close(service)

	ctx := context.Background()
	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		got, err := GetOrFetch(ctx, service, "key", fetch)
		if err != nil {
			t.Fatalf("expected no error but got: %v", err)
		}
		if got != "value" {
			t.Errorf("expected value, got %q", got)
		}
	}

	if calls != 1 {
		t.Errorf("expected one fetch, got %d", calls)
	}
}

func TestNewCacheService_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Backend = BackendRedis
	cfg.TTL = time.Minute
	cfg.Redis = DefaultRedisConfig()
	cfg.Redis.Addr = mr.Addr()

	service, err := NewCacheService(cfg)
	if err != nil {
		t.Fatalf("expected no error but got: %v", err)
	}
	defer Close(service)

	type user struct {
		ID   string
		Name string
	}

	ctx := context.Background()
	want := user{ID: "u1", Name: "Ada"}
	if err := service.Set(ctx, "user:u1", want); err != nil {
		t.Fatalf("expected no error from Set but got: %v", err)
	}

	got, err := GetOrFetch(ctx, service, "user:u1", func(ctx context.Context) (user, error) {
		t.Error("fetch should not run for a stored key")
		return user{}, nil
	})
	if err != nil {
		t.Fatalf("expected no error but got: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	if !mr.Exists("qc:user:u1") {
		t.Error("expected the key to be stored in the default namespace")
	}
}

func TestNewCacheService_InvalidConfig(t *testing.T) {
	service, err := NewCacheService(Config{})
	if err == nil {
		t.Fatal("expected an error for an empty config")
	}
	if service != nil {
		t.Errorf("expected nil service, got %T", service)
	}
}

func TestClose_WithoutCloser(t *testing.T) {
	if err := Close(&mockCacheService{}); err != nil {
		t.Errorf("expected no error but got: %v", err)
	}
}
