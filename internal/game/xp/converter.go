// Package xp converts earned experience into skill points.
package xp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/udisondev/survivalskills/internal/model"
)

// DefaultThreshold is the XP needed for one skill point.
const DefaultThreshold int64 = 500

// ErrUnavailable is returned by SetMultiplier while the stored state cannot be read.
var ErrUnavailable = errors.New("xp store unavailable")

// Store persists XPState.
type Store interface {
	// LoadXP returns a fresh state (multiplier 1.0) when no row exists.
	LoadXP(ctx context.Context, id model.PlayerID) (*model.XPState, error)
	SaveXP(ctx context.Context, s *model.XPState) error
}

// PointGranter receives one call per converted point.
type PointGranter interface {
	GrantPoints(ctx context.Context, id model.PlayerID, n int32)
}

// Options configure a Converter.
type Options struct {
	Threshold    int64
	StoreTimeout time.Duration
}

// Converter is the sole writer of XPState.
//
// A state that was never read from the store is never written to it. XP earned
// meanwhile is queued and replayed through the normal conversion once the load
// succeeds, so TotalXP only grows.
type Converter struct {
	granter   PointGranter
	store     Store
	threshold int64
	timeout   time.Duration

	mu      sync.RWMutex
	players map[model.PlayerID]*entry
}

type entry struct {
	mu     sync.Mutex
	s      model.XPState
	loaded bool
	dirty  bool
	queued []grant // credited before the state could be read
}

// grant is one AddXP call waiting for the player's multiplier.
type grant struct {
	base    int64
	product float64
}

// NewConverter creates a Converter. granter may be nil (points are counted but not granted).
func NewConverter(granter PointGranter, store Store, opts Options) *Converter {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 2 * time.Second
	}
	return &Converter{
		granter:   granter,
		store:     store,
		threshold: opts.Threshold,
		timeout:   opts.StoreTimeout,
		players:   make(map[model.PlayerID]*entry, 64),
	}
}

// Threshold returns the XP per point.
func (c *Converter) Threshold() int64 {
	return c.threshold
}

// AddXP credits floor(base × Π sources × player multiplier) and converts every
// full threshold into one point. Returns the number of points earned.
// Non-positive base or product credits nothing.
func (c *Converter) AddXP(ctx context.Context, id model.PlayerID, base int64, sources ...float64) int32 {
	if base <= 0 {
		return 0
	}
	product := 1.0
	for _, s := range sources {
		product *= s
	}
	if product <= 0 || math.IsNaN(product) {
		return 0
	}

	e := c.entry(id)
	e.mu.Lock()
	replayed, err := c.ensureLoaded(ctx, id, e)
	if err != nil {
		e.queued = append(e.queued, grant{base: base, product: product})
		e.mu.Unlock()
		slog.Warn("xp store unavailable, grant queued", "player", id, "xp", base, "queued", len(e.queued))
		return 0
	}

	points := c.credit(e, base, product)
	if e.dirty {
		c.persist(ctx, id, e)
	}
	e.mu.Unlock()

	c.grantPoints(ctx, id, replayed)
	c.grantPoints(ctx, id, points)

	if points > 0 {
		slog.Debug("xp converted", "player", id, "xp", base, "points", points)
	}
	return points
}

// credit adds floor(base × product × multiplier) and converts full thresholds.
// Marks the entry dirty when XP was added. Caller holds e.mu.
func (c *Converter) credit(e *entry, base int64, product float64) int32 {
	final := int64(math.Floor(float64(base) * product * e.s.Multiplier))
	if final <= 0 {
		return 0
	}

	e.s.TotalXP += final
	e.s.CurrentXP += final
	e.dirty = true

	var points int32
	for e.s.CurrentXP >= c.threshold {
		e.s.CurrentXP -= c.threshold
		points++
	}
	return points
}

// grantPoints hands converted points to the granter, one call per point.
// Вызывать вне XP-lock: progression берёт свой lock.
func (c *Converter) grantPoints(ctx context.Context, id model.PlayerID, points int32) {
	if c.granter == nil {
		return
	}
	for range points {
		c.granter.GrantPoints(ctx, id, 1)
	}
}

// SetMultiplier sets the personal XP multiplier. m must be positive and finite.
func (c *Converter) SetMultiplier(ctx context.Context, id model.PlayerID, m float64) error {
	if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return fmt.Errorf("set xp multiplier: invalid value %v", m)
	}

	e := c.entry(id)
	e.mu.Lock()
	replayed, err := c.ensureLoaded(ctx, id, e)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("set xp multiplier: %w: %v", ErrUnavailable, err)
	}
	e.s.Multiplier = m
	e.dirty = true
	c.persist(ctx, id, e)
	e.mu.Unlock()

	c.grantPoints(ctx, id, replayed)
	return nil
}

// State returns a copy of the player's XP state.
func (c *Converter) State(ctx context.Context, id model.PlayerID) model.XPState {
	e := c.entry(id)
	e.mu.Lock()
	replayed, _ := c.ensureLoaded(ctx, id, e)
	s := e.s
	e.mu.Unlock()

	c.grantPoints(ctx, id, replayed)
	return s
}

// Progress returns the percentage (0–100) toward the next point.
func (c *Converter) Progress(ctx context.Context, id model.PlayerID) float64 {
	s := c.State(ctx, id)
	return float64(s.CurrentXP) * 100 / float64(c.threshold)
}

// Flush retries pending writes and queued grants. Returns the number of entries
// still dirty or queued.
func (c *Converter) Flush(ctx context.Context) int {
	c.mu.RLock()
	entries := make(map[model.PlayerID]*entry, len(c.players))
	for id, e := range c.players {
		entries[id] = e
	}
	c.mu.RUnlock()

	var dirty int
	for id, e := range entries {
		e.mu.Lock()
		var replayed int32
		if len(e.queued) > 0 {
			replayed, _ = c.ensureLoaded(ctx, id, e)
		}
		if e.dirty {
			c.persist(ctx, id, e)
		}
		if e.dirty || len(e.queued) > 0 {
			dirty++
		}
		e.mu.Unlock()

		c.grantPoints(ctx, id, replayed)
	}
	return dirty
}

// Release drops a clean player from memory.
func (c *Converter) Release(ctx context.Context, id model.PlayerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.players[id]
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queued) > 0 {
		// Сначала Flush: реплей выдаёт очки вне lock.
		return fmt.Errorf("release %s: %d xp grants queued", id, len(e.queued))
	}
	if e.dirty {
		c.persist(ctx, id, e)
	}
	if e.dirty {
		return fmt.Errorf("release %s: xp state not persisted", id)
	}
	delete(c.players, id)
	return nil
}

func (c *Converter) entry(id model.PlayerID) *entry {
	c.mu.RLock()
	e, ok := c.players[id]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.players[id]; ok {
		return e
	}
	e = &entry{s: *model.NewXPState(id)}
	c.players[id] = e
	return e
}

// ensureLoaded reads the stored state, retried on every access until it
// succeeds, then replays queued grants. Returns the points those grants earned;
// the caller hands them to the granter after releasing e.mu.
func (c *Converter) ensureLoaded(ctx context.Context, id model.PlayerID, e *entry) (int32, error) {
	if e.loaded {
		return 0, nil
	}
	if c.store == nil {
		e.loaded = true
		return c.replay(e), nil
	}

	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	s, err := c.store.LoadXP(sctx, id)
	if err != nil {
		slog.Warn("xp load failed, retrying on next access", "player", id, "error", err)
		return 0, err
	}
	if s == nil {
		s = model.NewXPState(id)
	}
	s.PlayerID = id
	if s.Multiplier <= 0 || math.IsNaN(s.Multiplier) {
		s.Multiplier = 1.0
		e.dirty = true
	}
	if s.CurrentXP < 0 {
		s.CurrentXP = 0
		e.dirty = true
	}

	e.s = *s
	e.loaded = true
	points := c.replay(e)
	if e.dirty {
		c.persist(ctx, id, e)
	}
	return points, nil
}

func (c *Converter) replay(e *entry) int32 {
	var points int32
	for _, g := range e.queued {
		points += c.credit(e, g.base, g.product)
	}
	e.queued = nil
	return points
}

// persist writes the entry; caller holds e.mu.
func (c *Converter) persist(ctx context.Context, id model.PlayerID, e *entry) {
	if c.store == nil {
		e.dirty = false
		return
	}

	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	snap := e.s
	if err := c.store.SaveXP(sctx, &snap); err != nil {
		slog.Warn("xp save failed, will retry", "player", id, "error", err)
		return
	}
	e.dirty = false
	e.loaded = true
}
