package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingChecker struct {
	healthy bool
	calls   atomic.Int64
}

func (c *countingChecker) Check(context.Context) CheckResult {
	c.calls.Add(1)
	if !c.healthy {
		return CheckResult{Name: "fake", Error: "down"}
	}
	return CheckResult{Name: "fake", Healthy: true}
}

func TestProbeRunnerAggregatesAndCaches(t *testing.T) {
	ok := &countingChecker{healthy: true}
	bad := &countingChecker{healthy: false}
	runner := NewProbeRunner(time.Second, time.Minute, ok, bad)

	ready, results := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected not ready with a failing checker")
	}
	if len(results) != 2 || results[1].Error != "down" {
		t.Fatalf("unexpected results: %+v", results)
	}

	runner.Ready(context.Background())
	if ok.calls.Load() != 1 {
		t.Fatalf("expected cached result, checker ran %d times", ok.calls.Load())
	}
}

func TestProbeRunnerNoCache(t *testing.T) {
	ok := &countingChecker{healthy: true}
	runner := NewProbeRunner(time.Second, 0, ok)
	for i := 0; i < 3; i++ {
		if ready, _ := runner.Ready(context.Background()); !ready {
			t.Fatal("expected ready")
		}
	}
	if ok.calls.Load() != 3 {
		t.Fatalf("expected 3 runs without cache, got %d", ok.calls.Load())
	}
}

func TestRedisChecker(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if res := (RedisChecker{Client: client}).Check(context.Background()); !res.Healthy {
		t.Fatalf("expected healthy redis, got %+v", res)
	}
	server.Close()
	if res := (RedisChecker{Client: client}).Check(context.Background()); res.Healthy {
		t.Fatal("expected unhealthy redis after close")
	}
}
