package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLock_OwnerIDsAreUnique(t *testing.T) {
	_, client := setupTestRedis(t)

	a, b := NewLock(client), NewLock(client)
	if a.OwnerID() == "" {
		t.Fatal("expected non-empty owner id")
	}
	if a.OwnerID() == b.OwnerID() {
		t.Errorf("expected unique owner ids, both were %s", a.OwnerID())
	}
}

func TestLock_AcquireRelease(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	first, second := NewLock(client), NewLock(client)

	tests := []struct {
		name string
		run  func() (bool, error)
		want bool
	}{
		{"first holder", func() (bool, error) { return first.Acquire(ctx, "index:handbook", time.Minute) }, true},
		{"second holder blocked", func() (bool, error) { return second.Acquire(ctx, "index:handbook", time.Minute) }, false},
		{"not reentrant", func() (bool, error) { return first.Acquire(ctx, "index:handbook", time.Minute) }, false},
		{"other name free", func() (bool, error) { return second.Acquire(ctx, "index:other", time.Minute) }, true},
	}
	for _, tt := range tests {
		got, err := tt.run()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: acquired = %v, want %v", tt.name, got, tt.want)
		}
	}

	if owner, _ := mr.Get(lockPrefix + "index:handbook"); owner != first.OwnerID() {
		t.Errorf("lock value = %q, want %q", owner, first.OwnerID())
	}

	// A foreign release leaves the lock in place
	if err := second.Release(ctx, "index:handbook"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mr.Exists(lockPrefix + "index:handbook") {
		t.Fatal("foreign release removed the lock")
	}

	if err := first.Release(ctx, "index:handbook"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := second.Acquire(ctx, "index:handbook", time.Minute); !ok {
		t.Error("expected lock to be free after release")
	}
}

func TestLock_ReleaseNotHeld(t *testing.T) {
	_, client := setupTestRedis(t)
	if err := NewLock(client).Release(context.Background(), "nothing"); err != nil {
		t.Errorf("unexpected error releasing unheld lock: %v", err)
	}
}

func TestLock_Expiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	first, second := NewLock(client), NewLock(client)

	if ok, _ := first.Acquire(ctx, "scheduler", time.Second); !ok {
		t.Fatal("expected to acquire")
	}
	mr.FastForward(2 * time.Second)

	if ok, _ := second.Acquire(ctx, "scheduler", time.Second); !ok {
		t.Error("expected expired lock to be acquirable")
	}
}

func TestLock_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	first, second := NewLock(client), NewLock(client)

	if err := first.Extend(ctx, "index:a", time.Minute); err == nil {
		t.Error("expected error extending an unheld lock")
	}

	if ok, _ := first.Acquire(ctx, "index:a", time.Second); !ok {
		t.Fatal("expected to acquire")
	}
	if err := second.Extend(ctx, "index:a", time.Minute); err == nil {
		t.Error("expected error when a different owner extends")
	}
	if err := first.Extend(ctx, "index:a", time.Minute); err != nil {
		t.Fatalf("unexpected error on extend: %v", err)
	}
	if ttl := mr.TTL(lockPrefix + "index:a"); ttl < 30*time.Second {
		t.Errorf("expected extended ttl, got %v", ttl)
	}
}

func TestLock_Ping(t *testing.T) {
	_, client := setupTestRedis(t)
	if err := NewLock(client).Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = client.Close()

	if _, err := Connect(context.Background(), "not a url"); err == nil {
		t.Error("expected error for malformed url")
	}
}
