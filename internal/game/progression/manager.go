package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/survivalskills/internal/clock"
	"github.com/udisondev/survivalskills/internal/data"
	"github.com/udisondev/survivalskills/internal/model"
)

// Store is the durable side of PlayerProgression.
type Store interface {
	// LoadProgression returns an empty progression (not an error) when no row exists.
	LoadProgression(ctx context.Context, id model.PlayerID) (*model.Progression, error)
	// SaveProgression is an idempotent upsert of the progression columns.
	SaveProgression(ctx context.Context, p *model.Progression) error
	// ResetProgressions clears every row whose last reset is before at.
	ResetProgressions(ctx context.Context, at time.Time) error
}

// Options configure a Manager. Zero values fall back to defaults.
type Options struct {
	Rules        Rules
	Clock        clock.Clock
	StoreTimeout time.Duration
}

// ErrUnavailable is returned by mutations while the player's stored row cannot be read.
var ErrUnavailable = errors.New("progression store unavailable")

// Manager is the sole writer of PlayerProgression.
//
// Каждый игрок — отдельная entry со своим mutex: операции над разными игроками
// не блокируют друг друга, операции над одним игроком строго последовательны.
// In-memory state is authoritative once loaded; a failed save leaves the entry
// dirty and the save is retried on the next mutation or Flush. An entry whose row
// was never read is never written: mutations are refused with ErrUnavailable,
// point grants are queued and merged into the row once it loads.
type Manager struct {
	catalog *data.Catalog
	rules   Rules
	store   Store
	clock   clock.Clock
	timeout time.Duration

	mu      sync.RWMutex
	players map[model.PlayerID]*entry

	// pendingCycle is a new-cycle time the store has not confirmed yet.
	// Rows loaded with an older LastReset are cleared on load.
	cycleMu      sync.Mutex
	pendingCycle time.Time
}

type entry struct {
	mu     sync.Mutex
	p      model.Progression
	loaded bool // durable row read or written successfully
	dirty  bool // memory differs from the store
	queued int32 // points granted before the row could be read
}

// NewManager creates a Manager over the catalog and store.
func NewManager(catalog *data.Catalog, store Store, opts Options) *Manager {
	if opts.Rules == (Rules{}) {
		opts.Rules = DefaultRules()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 2 * time.Second
	}
	return &Manager{
		catalog: catalog,
		rules:   opts.Rules,
		store:   store,
		clock:   opts.Clock,
		timeout: opts.StoreTimeout,
		players: make(map[model.PlayerID]*entry, 64),
	}
}

// Rules returns the limits in force.
func (m *Manager) Rules() Rules {
	return m.rules
}

// Unlock unlocks a catalog skill into its (tree, tier) slot.
func (m *Manager) Unlock(ctx context.Context, id model.PlayerID, skill model.SkillID) error {
	d, ok := m.catalog.Skill(skill)
	if !ok {
		return &ValidationError{Reason: ReasonUnknownSkill, Skill: skill}
	}
	return m.UnlockSlot(ctx, id, d.Tree, d.Tier, skill)
}

// UnlockSlot validates and unlocks skill into the given slot.
// The skill must be a catalog candidate for exactly that slot.
func (m *Manager) UnlockSlot(ctx context.Context, id model.PlayerID, tree model.Tree, tier model.Tier, skill model.SkillID) error {
	if err := m.checkSlotSkill(tree, tier, skill); err != nil {
		return err
	}

	var unlockErr error
	if err := m.mutate(ctx, id, func(p *model.Progression) bool {
		unlockErr = Unlock(p, m.rules, tree, tier, skill)
		return unlockErr == nil
	}); err != nil {
		return err
	}
	if unlockErr != nil {
		return unlockErr
	}

	slog.Info("skill unlocked", "player", id, "skill", skill, "tree", tree, "tier", tier)
	return nil
}

// CanUnlock reports whether skill could be unlocked right now, without mutating.
func (m *Manager) CanUnlock(ctx context.Context, id model.PlayerID, skill model.SkillID) error {
	d, ok := m.catalog.Skill(skill)
	if !ok {
		return &ValidationError{Reason: ReasonUnknownSkill, Skill: skill}
	}

	var err error
	m.read(ctx, id, func(p *model.Progression) {
		err = CanUnlock(p, m.rules, d.Tree, d.Tier)
	})
	return err
}

// ForceUnlock unlocks skill without the points and budget checks (admin path).
// The slot order and the ultimate cap still hold.
func (m *Manager) ForceUnlock(ctx context.Context, id model.PlayerID, skill model.SkillID) error {
	d, ok := m.catalog.Skill(skill)
	if !ok {
		return &ValidationError{Reason: ReasonUnknownSkill, Skill: skill}
	}

	var forceErr error
	if err := m.mutate(ctx, id, func(p *model.Progression) bool {
		forceErr = ForceUnlock(p, m.rules, d.Tree, d.Tier, d.ID)
		return forceErr == nil
	}); err != nil {
		return err
	}
	if forceErr != nil {
		return forceErr
	}

	slog.Info("skill force-unlocked", "player", id, "skill", skill)
	return nil
}

// ResetTree refunds and clears one tree. Returns the refunded points.
func (m *Manager) ResetTree(ctx context.Context, id model.PlayerID, tree model.Tree) (int32, error) {
	if !tree.Valid() {
		return 0, fmt.Errorf("reset tree: invalid tree %d", tree)
	}

	var refund int32
	err := m.mutate(ctx, id, func(p *model.Progression) bool {
		refund = ResetTree(p, m.rules, tree)
		return refund > 0
	})
	return refund, err
}

// ResetAll refunds and clears every tree and records the reset time.
func (m *Manager) ResetAll(ctx context.Context, id model.PlayerID) (int32, error) {
	var refund int32
	now := m.clock.Now()
	err := m.mutate(ctx, id, func(p *model.Progression) bool {
		refund = ResetAll(p, m.rules, now)
		return true
	})
	return refund, err
}

// GrantPoints adds n spendable points. Non-positive n is ignored.
// While the stored row cannot be read the grant is queued, never dropped.
func (m *Manager) GrantPoints(ctx context.Context, id model.PlayerID, n int32) {
	if n <= 0 {
		return
	}

	e := m.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := m.ensureLoaded(ctx, id, e); err != nil {
		e.queued += n
		e.p.PointsAvailable += n
		slog.Warn("progression unavailable, points queued", "player", id, "points", n, "queued", e.queued)
		return
	}
	e.p.PointsAvailable += n
	e.dirty = true
	m.persist(ctx, id, e)
}

// HasSkill is the capability query used by gameplay event sources.
func (m *Manager) HasSkill(ctx context.Context, id model.PlayerID, skill model.SkillID) bool {
	var has bool
	m.read(ctx, id, func(p *model.Progression) {
		has = p.HasSkill(skill)
	})
	return has
}

// Snapshot returns a copy of the player's progression.
func (m *Manager) Snapshot(ctx context.Context, id model.PlayerID) model.Progression {
	var out model.Progression
	m.read(ctx, id, func(p *model.Progression) {
		out = p.Clone()
	})
	return out
}

// Unlocked returns the descriptors of every unlocked skill.
func (m *Manager) Unlocked(ctx context.Context, id model.PlayerID) []model.SkillDescriptor {
	snap := m.Snapshot(ctx, id)
	ids := snap.Unlocked()
	out := make([]model.SkillDescriptor, 0, len(ids))
	for _, sid := range ids {
		if d, ok := m.catalog.Skill(sid); ok {
			out = append(out, d)
		}
	}
	return out
}

// NewCycle resets every player to an empty progression, refunding nothing.
// Players not currently in memory are reset in the store; if the store is
// unavailable they are cleared when next loaded.
func (m *Manager) NewCycle(ctx context.Context) {
	// Truncated to store precision (ms) so saved rows compare equal, not older.
	now := m.clock.Now().Truncate(time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cycleMu.Lock()
	m.pendingCycle = now
	m.cycleMu.Unlock()
	m.confirmCycle(ctx)

	for id, e := range m.players {
		e.mu.Lock()
		// Пустой прогресс известен целиком, старую строку читать не нужно.
		e.p.Clear(now)
		e.queued = 0
		e.loaded = true
		e.dirty = true
		m.persist(ctx, id, e)
		e.mu.Unlock()
	}

	slog.Info("new progression cycle", "at", now, "players_in_memory", len(m.players))
}

// Flush retries every pending write and every load owed queued points.
// Returns the number of entries still dirty or queued.
func (m *Manager) Flush(ctx context.Context) int {
	m.confirmCycle(ctx)

	m.mu.RLock()
	entries := make(map[model.PlayerID]*entry, len(m.players))
	for id, e := range m.players {
		entries[id] = e
	}
	m.mu.RUnlock()

	var dirty int
	for id, e := range entries {
		e.mu.Lock()
		if e.queued > 0 {
			_ = m.ensureLoaded(ctx, id, e)
		}
		if e.dirty {
			m.persist(ctx, id, e)
		}
		if e.dirty || e.queued > 0 {
			dirty++
		}
		e.mu.Unlock()
	}
	return dirty
}

// Release drops a player from memory after a successful flush (e.g. on disconnect).
// A dirty entry is kept so that no state is lost.
func (m *Manager) Release(ctx context.Context, id model.PlayerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.players[id]
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.queued > 0 {
		_ = m.ensureLoaded(ctx, id, e)
	}
	if e.dirty {
		m.persist(ctx, id, e)
	}
	if e.dirty || e.queued > 0 {
		return errors.New("release: progression not persisted, kept in memory")
	}
	delete(m.players, id)
	return nil
}

// Players returns the ids currently held in memory.
func (m *Manager) Players() []model.PlayerID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.PlayerID, 0, len(m.players))
	for id := range m.players {
		out = append(out, id)
	}
	return out
}

// mutate runs fn under the player lock and persists when fn reports a change.
// Refused with ErrUnavailable when the stored row cannot be read.
func (m *Manager) mutate(ctx context.Context, id model.PlayerID, fn func(p *model.Progression) bool) error {
	e := m.entry(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := m.ensureLoaded(ctx, id, e); err != nil {
		return fmt.Errorf("%w: player %s: %v", ErrUnavailable, id, err)
	}
	if !fn(&e.p) {
		// Nothing changed, but an earlier failed write still needs to go out.
		if e.dirty {
			m.persist(ctx, id, e)
		}
		return nil
	}
	e.dirty = true
	m.persist(ctx, id, e)
	return nil
}

func (m *Manager) read(ctx context.Context, id model.PlayerID, fn func(p *model.Progression)) {
	e := m.entry(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	_ = m.ensureLoaded(ctx, id, e)
	fn(&e.p)
}

func (m *Manager) entry(id model.PlayerID) *entry {
	m.mu.RLock()
	e, ok := m.players[id]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.players[id]; ok {
		return e
	}
	e = &entry{p: model.Progression{PlayerID: id}}
	m.players[id] = e
	return e
}

// ensureLoaded reads the durable row once, retried on every access until it
// succeeds. Queued points are merged into the loaded row.
func (m *Manager) ensureLoaded(ctx context.Context, id model.PlayerID, e *entry) error {
	if e.loaded {
		return nil
	}
	if m.store == nil {
		e.loaded = true
		e.queued = 0
		return nil
	}

	sctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	p, err := m.store.LoadProgression(sctx, id)
	if err != nil {
		slog.Warn("progression load failed, retrying on next access", "player", id, "error", err)
		return err
	}
	if p == nil {
		p = model.NewProgression(id)
	}
	p.PlayerID = id

	if err := CheckInvariants(p, m.rules); err != nil {
		slog.Warn("repairing loaded progression", "player", id, "error", err)
		Repair(p, m.rules)
		e.dirty = true
	}

	m.cycleMu.Lock()
	pending := m.pendingCycle
	m.cycleMu.Unlock()
	if !pending.IsZero() && p.LastReset.Before(pending) {
		p.Clear(pending)
		e.dirty = true
	}

	if e.queued > 0 {
		p.PointsAvailable += e.queued
		e.queued = 0
		e.dirty = true
	}

	e.p = *p
	e.loaded = true
	if e.dirty {
		m.persist(ctx, id, e)
	}
	return nil
}

// persist writes the entry; caller holds e.mu.
func (m *Manager) persist(ctx context.Context, id model.PlayerID, e *entry) {
	if m.store == nil {
		e.dirty = false
		return
	}

	sctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	snap := e.p.Clone()
	if err := m.store.SaveProgression(sctx, &snap); err != nil {
		slog.Warn("progression save failed, will retry", "player", id, "error", err)
		return
	}
	e.dirty = false
	e.loaded = true
}

// confirmCycle pushes a pending new cycle to the store.
func (m *Manager) confirmCycle(ctx context.Context) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	if m.pendingCycle.IsZero() || m.store == nil {
		m.pendingCycle = time.Time{}
		return
	}

	sctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.store.ResetProgressions(sctx, m.pendingCycle); err != nil {
		slog.Warn("new cycle reset failed, will retry", "at", m.pendingCycle, "error", err)
		return
	}
	m.pendingCycle = time.Time{}
}

func (m *Manager) checkSlotSkill(tree model.Tree, tier model.Tier, skill model.SkillID) error {
	if !tree.Valid() || !tier.Valid() {
		return &ValidationError{Reason: ReasonInvalidSlot, Tree: tree, Tier: tier, Skill: skill}
	}
	d, ok := m.catalog.Skill(skill)
	if !ok {
		return &ValidationError{Reason: ReasonUnknownSkill, Tree: tree, Tier: tier, Skill: skill}
	}
	if d.Tree != tree || d.Tier != tier {
		return &ValidationError{Reason: ReasonSkillMismatch, Tree: tree, Tier: tier, Skill: skill}
	}
	return nil
}
