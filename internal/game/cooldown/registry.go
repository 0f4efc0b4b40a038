// Package cooldown gates ability activation by per-player expiry timestamps.
package cooldown

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/udisondev/survivalskills/internal/clock"
	"github.com/udisondev/survivalskills/internal/model"
)

// Store is the durable side of the registry.
type Store interface {
	// LoadCooldowns returns every stored gate of the player; expired ones may be included.
	LoadCooldowns(ctx context.Context, id model.PlayerID) (map[string]time.Time, error)
	SaveCooldown(ctx context.Context, id model.PlayerID, ability string, expiry time.Time) error
	DeleteCooldown(ctx context.Context, id model.PlayerID, ability string) error
	// DeleteExpiredCooldowns purges gates with expiry ≤ now. Returns rows removed.
	DeleteExpiredCooldowns(ctx context.Context, now time.Time) (int64, error)
}

// Status of an activation attempt.
type Status int

const (
	Activated Status = iota
	OnCooldown
	// Unavailable: the player's stored gates could not be read, nothing was activated.
	Unavailable
)

// maxSeconds is the longest gate a time.Duration can carry.
const maxSeconds = int64(math.MaxInt64 / int64(time.Second))

func (s Status) String() string {
	switch s {
	case Activated:
		return "activated"
	case Unavailable:
		return "unavailable"
	default:
		return "on_cooldown"
	}
}

// Result of TryActivate. Remaining is zero when Activated.
type Result struct {
	Status    Status
	Remaining time.Duration
}

// Activated reports whether the gate was passed.
func (r Result) Activated() bool {
	return r.Status == Activated
}

// RemainingSeconds rounds Remaining up to whole seconds.
func (r Result) RemainingSeconds() int64 {
	return ceilSeconds(r.Remaining)
}

// Options configure a Registry.
type Options struct {
	Clock        clock.Clock
	StoreTimeout time.Duration
}

// pendingOp is the latest durable write owed for one ability.
type pendingOp struct {
	expiry time.Time
	delete bool
}

type entry struct {
	mu      sync.Mutex
	gates   map[string]time.Time
	pending map[string]pendingOp
	loaded  bool
	wiped   bool // ClearAll ran before the stored gates could be read
}

// Registry is the sole writer of cooldown entries.
// Gates of one player are serialized; different players are independent.
type Registry struct {
	store   Store
	clock   clock.Clock
	timeout time.Duration

	mu      sync.RWMutex
	players map[model.PlayerID]*entry
}

// NewRegistry creates a Registry. store may be nil for a memory-only registry.
func NewRegistry(store Store, opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 2 * time.Second
	}
	return &Registry{
		store:   store,
		clock:   opts.Clock,
		timeout: opts.StoreTimeout,
		players: make(map[model.PlayerID]*entry, 64),
	}
}

// IsReady reports whether ability has no live gate. False while the stored
// gates cannot be read.
func (r *Registry) IsReady(ctx context.Context, id model.PlayerID, ability string) bool {
	e := r.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !r.ensureLoaded(ctx, id, e) {
		return false
	}
	expiry, ok := e.gates[ability]
	return !ok || !expiry.After(r.clock.Now())
}

// TryActivate atomically checks the gate and, when ready, sets expiry = now + duration.
// A non-positive duration activates without storing a gate; durations beyond
// what time.Duration holds are clamped. Returns Unavailable while the stored
// gates cannot be read.
func (r *Registry) TryActivate(ctx context.Context, id model.PlayerID, ability string, durationSeconds int64) Result {
	now := r.clock.Now()

	e := r.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !r.ensureLoaded(ctx, id, e) {
		r.flushPending(ctx, id, e)
		return Result{Status: Unavailable}
	}

	if expiry, ok := e.gates[ability]; ok && expiry.After(now) {
		r.flushPending(ctx, id, e)
		return Result{Status: OnCooldown, Remaining: expiry.Sub(now)}
	}

	if durationSeconds <= 0 {
		r.flushPending(ctx, id, e)
		return Result{Status: Activated}
	}

	expiry := now.Add(time.Duration(min(durationSeconds, maxSeconds)) * time.Second)
	e.gates[ability] = expiry
	e.pending[ability] = pendingOp{expiry: expiry}
	r.flushPending(ctx, id, e)

	return Result{Status: Activated}
}

// Clear removes the gate (refund when the activation could not take effect).
func (r *Registry) Clear(ctx context.Context, id model.PlayerID, ability string) {
	e := r.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	r.ensureLoaded(ctx, id, e)
	delete(e.gates, ability)
	e.pending[ability] = pendingOp{delete: true}
	r.flushPending(ctx, id, e)
}

// ClearAll removes every gate of the player. If the stored gates cannot be
// read yet, they are deleted once they load.
func (r *Registry) ClearAll(ctx context.Context, id model.PlayerID) int {
	e := r.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !r.ensureLoaded(ctx, id, e) {
		e.wiped = true
	}
	n := len(e.gates)
	for ability := range e.gates {
		e.pending[ability] = pendingOp{delete: true}
	}
	clear(e.gates)
	r.flushPending(ctx, id, e)
	return n
}

// Remaining returns the live gates of the player and the time left on each.
func (r *Registry) Remaining(ctx context.Context, id model.PlayerID) map[string]time.Duration {
	now := r.clock.Now()

	e := r.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	r.ensureLoaded(ctx, id, e)
	out := make(map[string]time.Duration, len(e.gates))
	for ability, expiry := range e.gates {
		if left := expiry.Sub(now); left > 0 {
			out[ability] = left
		}
	}
	return out
}

// CleanupExpired drops expired gates from memory and from the store.
// Never needed for correctness. Returns the number of in-memory gates dropped.
func (r *Registry) CleanupExpired(ctx context.Context) int {
	now := r.clock.Now()

	var removed int
	for _, e := range r.snapshot() {
		e.mu.Lock()
		for ability, expiry := range e.gates {
			if !expiry.After(now) {
				delete(e.gates, ability)
				removed++
			}
		}
		e.mu.Unlock()
	}

	if r.store != nil {
		sctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		n, err := r.store.DeleteExpiredCooldowns(sctx, now)
		if err != nil {
			slog.Warn("cooldown cleanup failed", "error", err)
		} else if n > 0 {
			slog.Debug("expired cooldowns purged", "count", n)
		}
	}
	return removed
}

// Flush retries every pending durable write. Returns the number of ops still pending.
func (r *Registry) Flush(ctx context.Context) int {
	var pending int
	r.mu.RLock()
	ids := make(map[model.PlayerID]*entry, len(r.players))
	for id, e := range r.players {
		ids[id] = e
	}
	r.mu.RUnlock()

	for id, e := range ids {
		e.mu.Lock()
		if e.wiped {
			r.ensureLoaded(ctx, id, e)
		}
		r.flushPending(ctx, id, e)
		pending += len(e.pending)
		if e.wiped {
			pending++
		}
		e.mu.Unlock()
	}
	return pending
}

// Release drops a player from memory once nothing is pending.
func (r *Registry) Release(ctx context.Context, id model.PlayerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.players[id]
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.wiped {
		r.ensureLoaded(ctx, id, e)
	}
	r.flushPending(ctx, id, e)
	if n := len(e.pending); n > 0 {
		return fmt.Errorf("release %s: %d cooldown writes pending", id, n)
	}
	if e.wiped {
		return fmt.Errorf("release %s: cooldown wipe not applied", id)
	}
	delete(r.players, id)
	return nil
}

func (r *Registry) entry(id model.PlayerID) *entry {
	r.mu.RLock()
	e, ok := r.players[id]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.players[id]; ok {
		return e
	}
	e = &entry{
		gates:   make(map[string]time.Time, 4),
		pending: make(map[string]pendingOp, 4),
	}
	r.players[id] = e
	return e
}

// ensureLoaded merges durable gates into memory. Retried on every access until
// one load succeeds; abilities cleared meanwhile keep their memory value and a
// pending wipe turns every stored gate into a delete. Reports whether loaded.
func (r *Registry) ensureLoaded(ctx context.Context, id model.PlayerID, e *entry) bool {
	if e.loaded || r.store == nil {
		e.loaded = true
		e.wiped = false
		return true
	}

	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stored, err := r.store.LoadCooldowns(sctx, id)
	if err != nil {
		slog.Warn("cooldown load failed, retrying on next access", "player", id, "error", err)
		return false
	}

	now := r.clock.Now()
	for ability, expiry := range stored {
		if _, touched := e.pending[ability]; touched {
			continue
		}
		if e.wiped {
			e.pending[ability] = pendingOp{delete: true}
			continue
		}
		if _, ok := e.gates[ability]; ok {
			continue
		}
		if expiry.After(now) {
			e.gates[ability] = expiry
		}
	}
	e.loaded = true
	e.wiped = false
	return true
}

// flushPending writes owed ops; failed ones stay queued. Caller holds e.mu.
func (r *Registry) flushPending(ctx context.Context, id model.PlayerID, e *entry) {
	if len(e.pending) == 0 {
		return
	}
	if r.store == nil {
		clear(e.pending)
		return
	}

	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	for ability, op := range e.pending {
		var err error
		if op.delete {
			err = r.store.DeleteCooldown(sctx, id, ability)
		} else {
			err = r.store.SaveCooldown(sctx, id, ability, op.expiry)
		}
		if err != nil {
			slog.Warn("cooldown write failed, will retry", "player", id, "ability", ability, "error", err)
			continue
		}
		delete(e.pending, ability)
	}
}

func (r *Registry) snapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entry, 0, len(r.players))
	for _, e := range r.players {
		out = append(out, e)
	}
	return out
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
