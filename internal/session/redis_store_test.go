package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCreateAndValidate(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	token, err := store.Create(ctx, 15*time.Minute)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	ok, err := store.Valid(ctx, token)
	if err != nil {
		t.Fatalf("Valid failed: %v", err)
	}
	if !ok {
		t.Error("expected session to be valid")
	}
}

func TestValidateExpiredSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	token, err := store.Create(ctx, 1*time.Second)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Fast-forward time in miniredis past the idle window
	s.FastForward(2 * time.Second)

	ok, err := store.Valid(ctx, token)
	if err != nil {
		t.Fatalf("Valid failed: %v", err)
	}
	if ok {
		t.Error("expected expired session to be invalid")
	}
}

func TestValidateSlidesIdleWindow(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	token, err := store.Create(ctx, 10*time.Second)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Touch at 8s, then check again at 16s total: still inside the refreshed window.
	s.FastForward(8 * time.Second)
	if ok, err := store.Valid(ctx, token); err != nil || !ok {
		t.Fatalf("expected valid session at 8s, ok=%v err=%v", ok, err)
	}

	s.FastForward(8 * time.Second)
	ok, err := store.Valid(ctx, token)
	if err != nil {
		t.Fatalf("Valid failed: %v", err)
	}
	if !ok {
		t.Error("expected touched session to remain valid")
	}
}

func TestRevokeSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	token, err := store.Create(ctx, 15*time.Minute)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	ok, err := store.Valid(ctx, token)
	if err != nil {
		t.Fatalf("Valid failed: %v", err)
	}
	if ok {
		t.Error("expected revoked session to be invalid")
	}

	// Revoke is idempotent
	if err := store.Revoke(ctx, token); err != nil {
		t.Errorf("second Revoke failed: %v", err)
	}
}

func TestValidateUnknownToken(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ok, err := store.Valid(context.Background(), "no-such-token")
	if err != nil {
		t.Fatalf("Valid failed: %v", err)
	}
	if ok {
		t.Error("expected unknown token to be invalid")
	}
}
