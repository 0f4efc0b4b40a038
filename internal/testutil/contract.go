package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/survivalskills/internal/model"
)

// ProgressionStore is the progression + XP persistence contract.
type ProgressionStore interface {
	LoadProgression(ctx context.Context, id model.PlayerID) (*model.Progression, error)
	SaveProgression(ctx context.Context, p *model.Progression) error
	ResetProgressions(ctx context.Context, at time.Time) error
	LoadXP(ctx context.Context, id model.PlayerID) (*model.XPState, error)
	SaveXP(ctx context.Context, s *model.XPState) error
}

// CooldownStore is the cooldown persistence contract.
type CooldownStore interface {
	LoadCooldowns(ctx context.Context, id model.PlayerID) (map[string]time.Time, error)
	SaveCooldown(ctx context.Context, id model.PlayerID, ability string, expiry time.Time) error
	DeleteCooldown(ctx context.Context, id model.PlayerID, ability string) error
	DeleteExpiredCooldowns(ctx context.Context, now time.Time) (int64, error)
}

// RunProgressionStoreTests checks load/save/reset semantics against a fresh store.
func RunProgressionStoreTests(t *testing.T, newStore func(t *testing.T) ProgressionStore) {
	t.Run("missing row returns defaults", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p, err := s.LoadProgression(ctx, "ghost")
		require.NoError(t, err)
		assert.Equal(t, model.PlayerID("ghost"), p.PlayerID)
		assert.Zero(t, p.PointsAvailable)
		assert.Empty(t, p.Unlocked())
		assert.True(t, p.LastReset.IsZero())

		x, err := s.LoadXP(ctx, "ghost")
		require.NoError(t, err)
		assert.Equal(t, 1.0, x.Multiplier)
		assert.Zero(t, x.TotalXP)
	})

	t.Run("save is an upsert", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := model.NewProgression("p1")
		p.PointsAvailable = 7
		p.PointsSpent = 30
		p.UltimateCount = 1
		p.Slots[model.TreeCombat][model.Tier1] = "combat_momentum"
		p.Slots[model.TreeTeamwork][model.TierUltimate] = "teamwork_commander"
		p.LastReset = time.UnixMilli(1700000000123)
		require.NoError(t, s.SaveProgression(ctx, p))
		require.NoError(t, s.SaveProgression(ctx, p))

		got, err := s.LoadProgression(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, int32(7), got.PointsAvailable)
		assert.Equal(t, int32(30), got.PointsSpent)
		assert.Equal(t, int32(1), got.UltimateCount)
		assert.Equal(t, p.Slots, got.Slots)
		assert.True(t, p.LastReset.Equal(got.LastReset), "last reset %v != %v", p.LastReset, got.LastReset)

		p.Slots[model.TreeCombat][model.Tier1] = ""
		p.PointsSpent = 25
		require.NoError(t, s.SaveProgression(ctx, p))
		got, err = s.LoadProgression(ctx, "p1")
		require.NoError(t, err)
		assert.False(t, got.Occupied(model.TreeCombat, model.Tier1), "cleared slot stored as NULL")
	})

	t.Run("xp and progression share a row", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveXP(ctx, &model.XPState{PlayerID: "p2", TotalXP: 1250, CurrentXP: 250, Multiplier: 1.5}))
		p := model.NewProgression("p2")
		p.PointsAvailable = 2
		require.NoError(t, s.SaveProgression(ctx, p))

		x, err := s.LoadXP(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, int64(1250), x.TotalXP)
		assert.Equal(t, int64(250), x.CurrentXP)
		assert.InDelta(t, 1.5, x.Multiplier, 1e-9)

		got, err := s.LoadProgression(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, int32(2), got.PointsAvailable)
	})

	t.Run("reset clears rows older than the cycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		cycle := time.UnixMilli(1700000500000)

		old := model.NewProgression("old")
		old.PointsAvailable = 4
		old.PointsSpent = 5
		old.Slots[model.TreeSurvival][model.Tier1] = "survival_thick_skin"
		require.NoError(t, s.SaveProgression(ctx, old))
		require.NoError(t, s.SaveXP(ctx, &model.XPState{PlayerID: "old", TotalXP: 900, CurrentXP: 400, Multiplier: 1}))

		fresh := model.NewProgression("fresh")
		fresh.PointsAvailable = 9
		fresh.LastReset = cycle
		require.NoError(t, s.SaveProgression(ctx, fresh))

		require.NoError(t, s.ResetProgressions(ctx, cycle))

		got, err := s.LoadProgression(ctx, "old")
		require.NoError(t, err)
		assert.Zero(t, got.PointsAvailable)
		assert.Zero(t, got.PointsSpent)
		assert.Empty(t, got.Unlocked())
		assert.True(t, cycle.Equal(got.LastReset))

		x, err := s.LoadXP(ctx, "old")
		require.NoError(t, err)
		assert.Equal(t, int64(400), x.CurrentXP, "xp survives a new cycle")

		got, err = s.LoadProgression(ctx, "fresh")
		require.NoError(t, err)
		assert.Equal(t, int32(9), got.PointsAvailable, "rows at the cycle time are kept")
	})
}

// RunCooldownStoreTests checks gate persistence semantics against a fresh store.
// Expiries are in the future relative to the wall clock for stores with native TTL.
func RunCooldownStoreTests(t *testing.T, newStore func(t *testing.T) CooldownStore) {
	t.Run("save load delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		expiry := time.Now().Add(time.Hour).Truncate(time.Millisecond)

		require.NoError(t, s.SaveCooldown(ctx, "p1", "berserk", expiry))
		require.NoError(t, s.SaveCooldown(ctx, "p1", "dash", expiry.Add(time.Minute)))
		require.NoError(t, s.SaveCooldown(ctx, "p2", "berserk", expiry))

		got, err := s.LoadCooldowns(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, expiry.Equal(got["berserk"]))

		require.NoError(t, s.DeleteCooldown(ctx, "p1", "berserk"))
		require.NoError(t, s.DeleteCooldown(ctx, "p1", "missing"))

		got, err = s.LoadCooldowns(ctx, "p1")
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Contains(t, got, "dash")
	})

	t.Run("upsert replaces expiry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		first := time.Now().Add(time.Hour).Truncate(time.Millisecond)
		second := first.Add(30 * time.Minute)

		require.NoError(t, s.SaveCooldown(ctx, "p1", "ult", first))
		require.NoError(t, s.SaveCooldown(ctx, "p1", "ult", second))

		got, err := s.LoadCooldowns(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, second.Equal(got["ult"]))
	})

	t.Run("delete expired", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().Truncate(time.Millisecond)

		require.NoError(t, s.SaveCooldown(ctx, "p1", "live", now.Add(time.Hour)))

		_, err := s.DeleteExpiredCooldowns(ctx, now)
		require.NoError(t, err)

		got, err := s.LoadCooldowns(ctx, "p1")
		require.NoError(t, err)
		assert.Contains(t, got, "live")
	})
}
