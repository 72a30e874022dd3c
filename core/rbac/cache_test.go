package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.SetPermissions(ctx, "id", []Permission{"schedule.view"}, 5*time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	perms, ok, _ := c.GetPermissions(ctx, "id")
	if !ok || len(perms) != 1 || perms[0] != "schedule.view" {
		t.Fatalf("get: ok=%v perms=%v", ok, perms)
	}
	now = now.Add(5*time.Minute + time.Second)
	if _, ok, _ := c.GetPermissions(ctx, "id"); ok {
		t.Fatal("expired entry served")
	}
	if removed := c.Sweep(); removed != 1 {
		t.Fatalf("sweep removed %d", removed)
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	c := NewRedisCache(client)
	ctx := context.Background()

	if _, ok, err := c.GetPermissions(ctx, "id"); err != nil || ok {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}
	want := []Permission{"patients.view", "schedule.view"}
	if err := c.SetPermissions(ctx, "id", want, 5*time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	perms, ok, err := c.GetPermissions(ctx, "id")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(perms) != 2 || perms[0] != "patients.view" || perms[1] != "schedule.view" {
		t.Fatalf("perms: %v", perms)
	}

	srv.FastForward(6 * time.Minute)
	if _, ok, _ := c.GetPermissions(ctx, "id"); ok {
		t.Fatal("expired redis entry served")
	}

	_ = c.SetPermissions(ctx, "id", want, 5*time.Minute)
	if err := c.Invalidate(ctx, "id"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.GetPermissions(ctx, "id"); ok {
		t.Fatal("invalidated entry served")
	}
}
