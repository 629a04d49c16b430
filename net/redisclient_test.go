package net

import (
	"context"
	"testing"
	"time"

	"github.com/zalando/signet/net/redistest"
)

func TestRedisClientKVAndLock(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a redis container")
	}

	addr, done := redistest.NewTestRedis(t)
	defer done()

	cli := NewRedisRingClient(&RedisOptions{
		Addrs:        []string{addr},
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		DialTimeout:  time.Second,
		PoolTimeout:  time.Second,
	})
	defer cli.Close()

	if !cli.RingAvailable() {
		t.Fatal("redis ring not available")
	}

	ctx := context.Background()

	_, ok, err := cli.Get(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected miss for unknown key")
	}

	if err := cli.SetWithTTL(ctx, "k", "v", time.Minute); err != nil {
		t.Fatal(err)
	}
	v, ok, err := cli.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("got %q, %v, %v", v, ok, err)
	}

	ttl, err := cli.TTL(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("unexpected ttl %v", ttl)
	}

	if err := cli.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := cli.Get(ctx, "k"); ok {
		t.Error("key still present after delete")
	}
}

func TestRedisClientLockExclusive(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a redis container")
	}

	addr, done := redistest.NewTestRedis(t)
	defer done()

	cli := NewRedisRingClient(&RedisOptions{
		Addrs:        []string{addr},
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		DialTimeout:  time.Second,
		PoolTimeout:  time.Second,
	})
	defer cli.Close()

	ctx := context.Background()

	token, ok, err := cli.Acquire(ctx, "lock:test", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || token == "" {
		t.Fatal("failed to acquire free lock")
	}

	if _, ok, _ := cli.Acquire(ctx, "lock:test", time.Minute); ok {
		t.Error("acquired an already held lock")
	}

	// a foreign token must not release the lock
	if err := cli.Release(ctx, "lock:test", "not-the-token"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := cli.Acquire(ctx, "lock:test", time.Minute); ok {
		t.Error("foreign token released the lock")
	}

	if err := cli.Release(ctx, "lock:test", token); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := cli.Acquire(ctx, "lock:test", time.Minute); !ok {
		t.Error("lock not acquirable after release")
	}
}
