package service

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRejectedTokenStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRejectedTokenStore()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if seen, _ := store.Seen(ctx, "h1"); seen {
		t.Fatal("expected initial miss")
	}
	if err := store.Remember(ctx, "h1", time.Minute); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if seen, _ := store.Seen(ctx, "h1"); !seen {
		t.Fatal("expected hit after remember")
	}

	now = now.Add(2 * time.Minute)
	if seen, _ := store.Seen(ctx, "h1"); seen {
		t.Fatal("expected miss after ttl")
	}
	if len(store.entries) != 0 {
		t.Fatalf("expected expired entry to be dropped, got %d", len(store.entries))
	}
}

func TestInMemoryRejectedTokenStoreIgnoresZeroTTL(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRejectedTokenStore()
	if err := store.Remember(ctx, "h1", 0); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if seen, _ := store.Seen(ctx, "h1"); seen {
		t.Fatal("zero ttl must not be cached")
	}
}

func TestNoopRejectedTokenStore(t *testing.T) {
	ctx := context.Background()
	store := NewNoopRejectedTokenStore()
	if err := store.Remember(ctx, "h1", time.Minute); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if seen, _ := store.Seen(ctx, "h1"); seen {
		t.Fatal("noop store must never hit")
	}
}
