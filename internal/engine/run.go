package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultFlushInterval   = 10 * time.Second
	defaultCleanupInterval = 5 * time.Minute
	shutdownFlushTimeout   = 5 * time.Second
)

// Run drives housekeeping until ctx is cancelled: pending write retries,
// cooldown purges, idle player release and stack eviction. A final flush runs
// on the way out. Returns nil on cancellation.
func (e *Engine) Run(ctx context.Context) error {
	flushEvery := e.flushEvery
	if flushEvery <= 0 {
		flushEvery = defaultFlushInterval
	}
	cleanupEvery := e.cleanupEvery
	if cleanupEvery <= 0 {
		cleanupEvery = defaultCleanupInterval
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting progression flusher", "interval", flushEvery)
		every(gctx, flushEvery, func() {
			if pending := e.Flush(gctx); pending > 0 {
				slog.Warn("durable writes still pending", "count", pending)
			}
		})
		return nil
	})

	g.Go(func() error {
		slog.Info("starting cooldown cleanup", "interval", cleanupEvery)
		every(gctx, cleanupEvery, func() {
			if n := e.cooldowns.CleanupExpired(gctx); n > 0 {
				slog.Debug("expired cooldowns dropped", "count", n)
			}
		})
		return nil
	})

	if e.idleAfter > 0 {
		g.Go(func() error {
			slog.Info("starting idle player release", "after", e.idleAfter)
			every(gctx, max(e.idleAfter/2, time.Millisecond), func() {
				if n := e.ReleaseIdle(gctx, e.idleAfter); n > 0 {
					slog.Debug("idle players released", "count", n)
				}
			})
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("starting stack eviction")
		return e.stacks.Run(gctx)
	})

	err := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
	defer cancel()
	if pending := e.Flush(flushCtx); pending > 0 {
		slog.Error("shutdown with unsaved progression", "pending", pending)
	}

	return err
}

func every(ctx context.Context, d time.Duration, fn func()) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-ctx.Done():
			return
		}
	}
}
