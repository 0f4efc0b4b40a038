package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/udisondev/survivalskills/internal/model"
)

// touch records player activity for the idle sweep.
func (e *Engine) touch(id model.PlayerID) {
	now := e.clock.Now()
	e.seenMu.Lock()
	e.seen[id] = now
	e.seenMu.Unlock()
}

// ReleaseIdle releases every player with no activity for at least idle.
// Players whose writes are still pending stay in memory and are retried on the
// next sweep. Returns the number released.
func (e *Engine) ReleaseIdle(ctx context.Context, idle time.Duration) int {
	cutoff := e.clock.Now().Add(-idle)

	e.seenMu.Lock()
	stale := make([]model.PlayerID, 0, len(e.seen))
	for id, at := range e.seen {
		if !at.After(cutoff) {
			stale = append(stale, id)
		}
	}
	e.seenMu.Unlock()

	var released int
	for _, id := range stale {
		if err := e.Release(ctx, id); err != nil {
			slog.Debug("idle player kept in memory", "player", id, "error", err)
			continue
		}

		e.seenMu.Lock()
		// Игрок мог вернуться, пока шёл Release.
		if at, ok := e.seen[id]; ok && !at.After(cutoff) {
			delete(e.seen, id)
		}
		e.seenMu.Unlock()
		released++
	}
	return released
}

// Tracked returns the number of players with recorded activity.
func (e *Engine) Tracked() int {
	e.seenMu.Lock()
	defer e.seenMu.Unlock()
	return len(e.seen)
}
