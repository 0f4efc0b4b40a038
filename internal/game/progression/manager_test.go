package progression

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/survivalskills/internal/clock"
	"github.com/udisondev/survivalskills/internal/data"
	"github.com/udisondev/survivalskills/internal/model"
)

var errStoreDown = errors.New("store down")

// fakeStore is an in-memory Store with switchable failures.
type fakeStore struct {
	mu        sync.Mutex
	rows      map[model.PlayerID]model.Progression
	failSave  bool
	failLoad  bool
	failReset bool
	saves     int
	loads     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[model.PlayerID]model.Progression)}
}

func (s *fakeStore) LoadProgression(_ context.Context, id model.PlayerID) (*model.Progression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.failLoad {
		return nil, errStoreDown
	}
	row, ok := s.rows[id]
	if !ok {
		return model.NewProgression(id), nil
	}
	return &row, nil
}

func (s *fakeStore) SaveProgression(_ context.Context, p *model.Progression) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errStoreDown
	}
	s.saves++
	s.rows[p.PlayerID] = *p
	return nil
}

func (s *fakeStore) ResetProgressions(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReset {
		return errStoreDown
	}
	for id, row := range s.rows {
		if row.LastReset.Before(at) {
			row.Clear(at)
			s.rows[id] = row
		}
	}
	return nil
}

func (s *fakeStore) row(id model.PlayerID) (model.Progression, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	return r, ok
}

func (s *fakeStore) set(fn func(s *fakeStore)) {
	s.mu.Lock()
	fn(s)
	s.mu.Unlock()
}

func newTestManager(t *testing.T, store Store) (*Manager, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Unix(1700000000, 0))
	return NewManager(data.DefaultCatalog(), store, Options{Clock: clk}), clk
}

func TestManager_FirstReferenceIsEmpty(t *testing.T) {
	m, _ := newTestManager(t, newFakeStore())
	ctx := context.Background()

	snap := m.Snapshot(ctx, "p1")

	assert.Equal(t, model.PlayerID("p1"), snap.PlayerID)
	assert.Zero(t, snap.PointsAvailable)
	assert.Empty(t, snap.Unlocked())
	assert.False(t, m.HasSkill(ctx, "p1", "combat_momentum"))
}

func TestManager_UnlockPersists(t *testing.T) {
	store := newFakeStore()
	m, _ := newTestManager(t, store)
	ctx := context.Background()

	m.GrantPoints(ctx, "p1", 15)
	require.NoError(t, m.Unlock(ctx, "p1", "combat_momentum"))
	require.NoError(t, m.Unlock(ctx, "p1", "combat_precision"))

	assert.True(t, m.HasSkill(ctx, "p1", "combat_precision"))
	row, ok := store.row("p1")
	require.True(t, ok)
	assert.Equal(t, int32(0), row.PointsAvailable)
	assert.Equal(t, int32(15), row.PointsSpent)
	assert.Equal(t, model.SkillID("combat_precision"), row.Occupant(model.TreeCombat, model.Tier2))
}

func TestManager_Tier2BeforeTier1(t *testing.T) {
	m, _ := newTestManager(t, newFakeStore())
	ctx := context.Background()
	m.GrantPoints(ctx, "p1", 40)

	err := m.Unlock(ctx, "p1", "combat_precision")

	requireReason(t, err, ReasonMissingPrerequisite)
	assert.Equal(t, int32(40), m.Snapshot(ctx, "p1").PointsAvailable)
}

func TestManager_UnknownSkillAndMismatch(t *testing.T) {
	m, _ := newTestManager(t, newFakeStore())
	ctx := context.Background()
	m.GrantPoints(ctx, "p1", 100)

	requireReason(t, m.Unlock(ctx, "p1", "nope"), ReasonUnknownSkill)
	requireReason(t, m.ForceUnlock(ctx, "p1", "nope"), ReasonUnknownSkill)
	requireReason(t, m.CanUnlock(ctx, "p1", "nope"), ReasonUnknownSkill)
	requireReason(t, m.UnlockSlot(ctx, "p1", model.TreeCombat, model.Tier2, "combat_momentum"), ReasonSkillMismatch)
	requireReason(t, m.UnlockSlot(ctx, "p1", model.Tree(7), model.Tier2, "combat_momentum"), ReasonInvalidSlot)
	assert.Equal(t, int32(100), m.Snapshot(ctx, "p1").PointsAvailable)
}

func TestManager_ThirdUltimateRejected(t *testing.T) {
	// Two full trees cost 150, so the budget has to allow them.
	rules := DefaultRules()
	rules.MaxBudget = 300
	m := NewManager(data.DefaultCatalog(), newFakeStore(), Options{Rules: rules})
	ctx := context.Background()
	for _, tree := range []model.Tree{model.TreeCombat, model.TreeGathering} {
		for _, tier := range model.Tiers() {
			for _, d := range m.catalog.Slot(tree, tier)[:1] {
				require.NoError(t, m.ForceUnlock(ctx, "p1", d.ID))
			}
		}
	}
	for _, tier := range []model.Tier{model.Tier1, model.Tier2, model.Tier3, model.Tier4} {
		require.NoError(t, m.ForceUnlock(ctx, "p1", m.catalog.Slot(model.TreeSurvival, tier)[0].ID))
	}
	m.GrantPoints(ctx, "p1", 100)

	err := m.Unlock(ctx, "p1", "survival_phoenix")

	requireReason(t, err, ReasonMaxUltimates)
	snap := m.Snapshot(ctx, "p1")
	assert.Equal(t, int32(2), snap.UltimateCount)
	assert.True(t, snap.HasSkill("combat_warlord"))
	assert.True(t, snap.HasSkill("gathering_midas_touch"))
	require.NoError(t, CheckInvariants(&snap, m.Rules()))
}

func TestManager_ResetTreeAndAll(t *testing.T) {
	m, clk := newTestManager(t, newFakeStore())
	ctx := context.Background()
	m.GrantPoints(ctx, "p1", 30)
	require.NoError(t, m.Unlock(ctx, "p1", "survival_thick_skin"))
	require.NoError(t, m.Unlock(ctx, "p1", "survival_regeneration"))
	require.NoError(t, m.Unlock(ctx, "p1", "teamwork_rally"))

	refund, err := m.ResetTree(ctx, "p1", model.TreeSurvival)
	require.NoError(t, err)
	assert.Equal(t, int32(15), refund)
	assert.Equal(t, int32(25), m.Snapshot(ctx, "p1").PointsAvailable)

	_, err = m.ResetTree(ctx, "p1", model.Tree(5))
	assert.Error(t, err)

	clk.Advance(time.Hour)
	refund, err = m.ResetAll(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int32(5), refund)
	snap := m.Snapshot(ctx, "p1")
	assert.Equal(t, int32(30), snap.PointsAvailable)
	assert.Equal(t, clk.Now(), snap.LastReset)
}

func TestManager_LoadsExistingRow(t *testing.T) {
	store := newFakeStore()
	row := model.NewProgression("p1")
	row.PointsAvailable = 3
	row.PointsSpent = 5
	row.Slots[model.TreeGathering][model.Tier1] = "gathering_lumberjack"
	store.rows["p1"] = *row

	m, _ := newTestManager(t, store)

	assert.True(t, m.HasSkill(context.Background(), "p1", "gathering_lumberjack"))
	assert.Equal(t, int32(3), m.Snapshot(context.Background(), "p1").PointsAvailable)
}

func TestManager_RepairsInconsistentRow(t *testing.T) {
	store := newFakeStore()
	row := model.NewProgression("p1")
	row.PointsSpent = 99
	row.Slots[model.TreeGathering][model.Tier1] = "gathering_lumberjack"
	store.rows["p1"] = *row

	m, _ := newTestManager(t, store)
	snap := m.Snapshot(context.Background(), "p1")

	assert.Equal(t, int32(5), snap.PointsSpent)
	saved, _ := store.row("p1")
	assert.Equal(t, int32(5), saved.PointsSpent, "repair is written back")
}

// Store failures keep memory authoritative; the write goes out on the next mutation.
func TestManager_SaveFailureRetriedOnNextMutation(t *testing.T) {
	store := newFakeStore()
	m, _ := newTestManager(t, store)
	ctx := context.Background()

	store.set(func(s *fakeStore) { s.failSave = true })
	m.GrantPoints(ctx, "p1", 10)
	require.NoError(t, m.Unlock(ctx, "p1", "combat_momentum"))

	_, ok := store.row("p1")
	assert.False(t, ok, "nothing persisted while the store is down")
	assert.True(t, m.HasSkill(ctx, "p1", "combat_momentum"), "memory stays authoritative")

	store.set(func(s *fakeStore) { s.failSave = false })
	m.GrantPoints(ctx, "p1", 1)

	row, ok := store.row("p1")
	require.True(t, ok)
	assert.Equal(t, int32(6), row.PointsAvailable)
	assert.Equal(t, int32(5), row.PointsSpent)
	assert.True(t, row.HasSkill("combat_momentum"))
}

func TestManager_FlushRetriesDirty(t *testing.T) {
	store := newFakeStore()
	m, _ := newTestManager(t, store)
	ctx := context.Background()

	store.set(func(s *fakeStore) { s.failSave = true })
	m.GrantPoints(ctx, "p1", 10)
	m.GrantPoints(ctx, "p2", 10)
	assert.Equal(t, 2, m.Flush(ctx))

	store.set(func(s *fakeStore) { s.failSave = false })
	assert.Equal(t, 0, m.Flush(ctx))

	row, ok := store.row("p2")
	require.True(t, ok)
	assert.Equal(t, int32(10), row.PointsAvailable)
}

func TestManager_LoadFailureRetriedUntilMutation(t *testing.T) {
	store := newFakeStore()
	row := model.NewProgression("p1")
	row.PointsAvailable = 7
	store.rows["p1"] = *row
	m, _ := newTestManager(t, store)
	ctx := context.Background()

	store.set(func(s *fakeStore) { s.failLoad = true })
	assert.Equal(t, int32(0), m.Snapshot(ctx, "p1").PointsAvailable)

	store.set(func(s *fakeStore) { s.failLoad = false })
	assert.Equal(t, int32(7), m.Snapshot(ctx, "p1").PointsAvailable, "load retried on next access")
}

func TestManager_UnreadableRowNeverOverwritten(t *testing.T) {
	store := newFakeStore()
	stored := model.NewProgression("p1")
	stored.PointsAvailable = 40
	stored.PointsSpent = 5
	stored.Slots[model.TreeCombat][model.Tier1] = "combat_momentum"
	store.rows["p1"] = *stored
	m, _ := newTestManager(t, store)
	ctx := context.Background()

	store.set(func(s *fakeStore) { s.failLoad = true })

	m.GrantPoints(ctx, "p1", 1)
	assert.ErrorIs(t, m.Unlock(ctx, "p1", "gathering_lumberjack"), ErrUnavailable)
	assert.ErrorIs(t, m.ForceUnlock(ctx, "p1", "gathering_lumberjack"), ErrUnavailable)
	_, err := m.ResetTree(ctx, "p1", model.TreeCombat)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = m.ResetAll(ctx, "p1")
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.Equal(t, 1, m.Flush(ctx), "queued grant outstanding")
	assert.Error(t, m.Release(ctx, "p1"))
	row, _ := store.row("p1")
	assert.Equal(t, *stored, row)
	assert.Zero(t, store.saves)

	store.set(func(s *fakeStore) { s.failLoad = false })
	assert.Equal(t, 0, m.Flush(ctx))

	row, _ = store.row("p1")
	assert.Equal(t, int32(41), row.PointsAvailable, "queued grant merged into the stored row")
	assert.Equal(t, int32(5), row.PointsSpent)
	assert.True(t, row.HasSkill("combat_momentum"))
	require.NoError(t, m.Release(ctx, "p1"))
}

func TestManager_QueuedPointsMergedOnNextAccess(t *testing.T) {
	store := newFakeStore()
	stored := model.NewProgression("p1")
	stored.PointsAvailable = 3
	store.rows["p1"] = *stored
	m, _ := newTestManager(t, store)
	ctx := context.Background()

	store.set(func(s *fakeStore) { s.failLoad = true })
	m.GrantPoints(ctx, "p1", 2)
	m.GrantPoints(ctx, "p1", 2)
	store.set(func(s *fakeStore) { s.failLoad = false })

	require.NoError(t, m.Unlock(ctx, "p1", "combat_momentum"))
	snap := m.Snapshot(ctx, "p1")
	assert.Equal(t, int32(2), snap.PointsAvailable)
	assert.Equal(t, int32(5), snap.PointsSpent)
	row, _ := store.row("p1")
	assert.Equal(t, snap, row)
}

func TestManager_NewCycleResetsEveryone(t *testing.T) {
	store := newFakeStore()
	offline := model.NewProgression("offline")
	offline.PointsAvailable = 5
	offline.PointsSpent = 5
	offline.Slots[model.TreeCombat][model.Tier1] = "combat_momentum"
	store.rows["offline"] = *offline

	m, clk := newTestManager(t, store)
	ctx := context.Background()
	m.GrantPoints(ctx, "online", 20)
	require.NoError(t, m.Unlock(ctx, "online", "teamwork_rally"))

	clk.Advance(time.Minute)
	m.NewCycle(ctx)

	on := m.Snapshot(ctx, "online")
	assert.Zero(t, on.PointsAvailable, "new cycle refunds nothing")
	assert.Zero(t, on.PointsSpent)
	assert.Empty(t, on.Unlocked())
	assert.Equal(t, clk.Now(), on.LastReset)

	off, _ := store.row("offline")
	assert.Zero(t, off.PointsAvailable)
	assert.Empty(t, off.Unlocked())
}

func TestManager_NewCycleWithStoreDownClearsOnLoad(t *testing.T) {
	store := newFakeStore()
	offline := model.NewProgression("offline")
	offline.PointsAvailable = 9
	store.rows["offline"] = *offline

	m, clk := newTestManager(t, store)
	ctx := context.Background()
	clk.Advance(time.Minute)

	store.set(func(s *fakeStore) { s.failReset = true })
	m.NewCycle(ctx)

	assert.Zero(t, m.Snapshot(ctx, "offline").PointsAvailable, "stale row cleared on load")

	store.set(func(s *fakeStore) { s.failReset = false })
	m.Flush(ctx)
	m.GrantPoints(ctx, "offline", 4)
	m.Flush(ctx)

	row, _ := store.row("offline")
	assert.Equal(t, int32(4), row.PointsAvailable, "confirmed reset keeps newer rows")
}

func TestManager_Release(t *testing.T) {
	store := newFakeStore()
	m, _ := newTestManager(t, store)
	ctx := context.Background()
	m.GrantPoints(ctx, "p1", 5)

	store.set(func(s *fakeStore) { s.failSave = true })
	m.GrantPoints(ctx, "p1", 1)
	assert.Error(t, m.Release(ctx, "p1"))
	assert.Contains(t, m.Players(), model.PlayerID("p1"))

	store.set(func(s *fakeStore) { s.failSave = false })
	require.NoError(t, m.Release(ctx, "p1"))
	assert.NotContains(t, m.Players(), model.PlayerID("p1"))
	require.NoError(t, m.Release(ctx, "unknown"))

	assert.Equal(t, int32(6), m.Snapshot(ctx, "p1").PointsAvailable, "reloaded from store")
}

func TestManager_Unlocked(t *testing.T) {
	m, _ := newTestManager(t, newFakeStore())
	ctx := context.Background()
	m.GrantPoints(ctx, "p1", 5)
	require.NoError(t, m.Unlock(ctx, "p1", "gathering_lumberjack"))

	got := m.Unlocked(ctx, "p1")
	require.Len(t, got, 1)
	assert.Equal(t, model.EffectGatherYield, got[0].Effect)
}

// Concurrent grants and unlocks on one player keep every invariant.
func TestManager_ConcurrentSamePlayer(t *testing.T) {
	m, _ := newTestManager(t, newFakeStore())
	ctx := context.Background()

	const goroutines = 40
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := range goroutines {
		go func() {
			defer wg.Done()
			m.GrantPoints(ctx, "p1", 5)
			skills := []model.SkillID{"combat_momentum", "combat_precision", "combat_executioner", "combat_piercing", "combat_warlord"}
			_ = m.Unlock(ctx, "p1", skills[i%len(skills)])
		}()
	}
	wg.Wait()

	snap := m.Snapshot(ctx, "p1")
	require.NoError(t, CheckInvariants(&snap, m.Rules()))
	assert.Equal(t, int32(goroutines*5), snap.PointsAvailable+snap.PointsSpent, "no points lost or duplicated")
}

func TestManager_ConcurrentManyPlayers(t *testing.T) {
	m, _ := newTestManager(t, newFakeStore())
	ctx := context.Background()

	ids := []model.PlayerID{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				m.GrantPoints(ctx, id, 1)
			}
			_ = m.Unlock(ctx, id, "survival_thick_skin")
		}()
	}
	wg.Wait()

	for _, id := range ids {
		snap := m.Snapshot(ctx, id)
		assert.Equal(t, int32(15), snap.PointsAvailable, id)
		assert.True(t, snap.HasSkill("survival_thick_skin"), id)
	}
}
