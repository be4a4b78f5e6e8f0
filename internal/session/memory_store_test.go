package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	token, err := store.Create(ctx, 15*time.Minute)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if ok, _ := store.Valid(ctx, token); !ok {
		t.Error("expected session to be valid")
	}

	if err := store.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if ok, _ := store.Valid(ctx, token); ok {
		t.Error("expected revoked session to be invalid")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	token, err := store.Create(ctx, -time.Second)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if ok, _ := store.Valid(ctx, token); ok {
		t.Error("expected expired session to be invalid")
	}
}

func TestMemoryStoreEmptyToken(t *testing.T) {
	store := NewMemoryStore()
	if ok, _ := store.Valid(context.Background(), ""); ok {
		t.Error("expected empty token to be invalid")
	}
}
