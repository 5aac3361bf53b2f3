package app

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// StartSweepLoop runs SweepExpired every interval until the returned stop
// function is called. A non-positive interval disables the loop; listing
// still sweeps lazily.
func StartSweepLoop(sweeper Sweeper, interval time.Duration, logger *slog.Logger) func() {
	if interval <= 0 || sweeper == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if _, err := sweeper.SweepExpired(ctx, now.UTC()); err != nil && ctx.Err() == nil {
					logger.Warn("session sweep failed", "error", err)
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}
