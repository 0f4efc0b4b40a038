package effect

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/survivalskills/internal/clock"
	"github.com/udisondev/survivalskills/internal/data"
	"github.com/udisondev/survivalskills/internal/game/stacks"
	"github.com/udisondev/survivalskills/internal/model"
)

// fixedRand always returns v.
type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func allDamageCaps() Capabilities {
	return Capabilities{Stacking: true, Critical: true, Execute: true, ArmorPen: true}
}

func newTestComposer(t *testing.T) (*Composer, *stacks.Tracker, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Unix(1700000000, 0))
	tr := stacks.NewTracker(stacks.Options{Clock: clk})
	return NewComposer(DefaultConfig(), tr), tr, clk
}

func TestDamage_FullPipeline(t *testing.T) {
	c, tr, _ := newTestComposer(t)

	// Two earlier hits put the attacker at 2 stacks.
	tr.Hit("a", "b")
	tr.Hit("a", "b")

	got := c.Damage(DamageInput{
		Attacker: "a", Target: "b",
		Base: 10, HealthRatio: 0.25,
		Caps: Capabilities{Stacking: true, Critical: true, Execute: true},
		Rand: fixedRand(0.10),
	})

	// 3 stacks this hit: 10 × 1.15 × 1.5 × 1.30
	assert.InDelta(t, 10*1.15*1.5*1.30, got.Final, 1e-9)
	assert.Equal(t, 3, got.Stacks)
	assert.Equal(t, []Stage{StageStacking, StageCritical, StageExecute}, got.Fired)
}

func TestDamage_ScenarioTwoStacks(t *testing.T) {
	c, tr, _ := newTestComposer(t)
	tr.Hit("a", "b")

	got := c.Damage(DamageInput{
		Attacker: "a", Target: "b",
		Base: 10, HealthRatio: 0.2,
		Caps: Capabilities{Stacking: true, Critical: true, Execute: true},
		Rand: fixedRand(0),
	})

	// Second hit on the target: 10 × 1.10 × 1.5 × 1.30 = 21.45
	assert.InDelta(t, 21.45, got.Final, 1e-9)
}

func TestDamage_AllStagesOrder(t *testing.T) {
	c, _, _ := newTestComposer(t)

	got := c.Damage(DamageInput{
		Attacker: "a", Target: "b",
		Base: 100, HealthRatio: 0.1,
		Caps: allDamageCaps(),
		Rand: fixedRand(0),
	})

	assert.Equal(t, []Stage{StageStacking, StageCritical, StageExecute, StageArmorPen}, got.Fired)
	assert.InDelta(t, 100*1.05*1.5*1.30*1.15, got.Final, 1e-9)
	assert.True(t, got.Has(StageArmorPen))
}

func TestDamage_NoCapabilitiesIsIdentity(t *testing.T) {
	c, tr, _ := newTestComposer(t)

	got := c.Damage(DamageInput{Attacker: "a", Target: "b", Base: 42, HealthRatio: 0.01, Rand: fixedRand(0)})

	assert.Equal(t, 42.0, got.Final)
	assert.Empty(t, got.Fired)
	assert.Zero(t, tr.Peek("a", "b"), "no stack recorded without the capability")
}

func TestDamage_StageConditions(t *testing.T) {
	tests := []struct {
		name   string
		caps   Capabilities
		ratio  float64
		roll   float64
		want   float64
		fired  []Stage
	}{
		{"crit misses", Capabilities{Critical: true}, 1, 0.20, 10, []Stage{}},
		{"crit hits", Capabilities{Critical: true}, 1, 0.19, 15, []Stage{StageCritical}},
		{"execute at threshold", Capabilities{Execute: true}, 0.30, 0, 10, []Stage{}},
		{"execute below threshold", Capabilities{Execute: true}, 0.29, 0, 13, []Stage{StageExecute}},
		{"armor pen always", Capabilities{ArmorPen: true}, 1, 0.99, 11.5, []Stage{StageArmorPen}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewComposer(DefaultConfig(), nil)
			got := c.Damage(DamageInput{Base: 10, HealthRatio: tt.ratio, Caps: tt.caps, Rand: fixedRand(tt.roll)})
			assert.InDelta(t, tt.want, got.Final, 1e-9)
			assert.Equal(t, tt.fired, got.Fired)
		})
	}
}

func TestDamage_NonPositiveBase(t *testing.T) {
	c, tr, _ := newTestComposer(t)

	got := c.Damage(DamageInput{Attacker: "a", Target: "b", Base: 0, Caps: allDamageCaps()})
	assert.Zero(t, got.Final)
	assert.Empty(t, got.Fired)
	assert.Zero(t, tr.Peek("a", "b"))

	got = c.Damage(DamageInput{Attacker: "a", Target: "b", Base: -5, Caps: allDamageCaps()})
	assert.Zero(t, got.Final)
}

func TestDamage_NilRandUsesGlobal(t *testing.T) {
	c := NewComposer(DefaultConfig(), nil)

	got := c.Damage(DamageInput{Base: 10, HealthRatio: 1, Caps: Capabilities{Critical: true}})
	assert.Contains(t, []float64{10, 15}, got.Final)
}

func TestDamage_CritRateConverges(t *testing.T) {
	c := NewComposer(DefaultConfig(), nil)
	rng := rand.New(rand.NewPCG(7, 11))

	var crits int
	const n = 20000
	for range n {
		if c.Damage(DamageInput{Base: 1, HealthRatio: 1, Caps: Capabilities{Critical: true}, Rand: rng}).Has(StageCritical) {
			crits++
		}
	}
	assert.InDelta(t, 0.20, float64(crits)/n, 0.02)
}

func TestCapabilitiesOf_CombatTree(t *testing.T) {
	cat := data.DefaultCatalog()
	var descs []model.SkillDescriptor
	for _, id := range []model.SkillID{"combat_momentum", "combat_precision", "combat_executioner", "combat_piercing", "combat_warlord"} {
		d, ok := cat.Skill(id)
		require.True(t, ok, id)
		descs = append(descs, d)
	}

	caps := CapabilitiesOf(descs)

	assert.True(t, caps.Stacking)
	assert.True(t, caps.Critical)
	assert.True(t, caps.Execute)
	assert.True(t, caps.ArmorPen)
	assert.InDelta(t, 0.10, caps.TeamAura, 1e-9)
}

func TestCapabilitiesOf_AurasTakeHighest(t *testing.T) {
	caps := CapabilitiesOf([]model.SkillDescriptor{
		{Effect: model.EffectTeamAura, Magnitude: 0.10},
		{Effect: model.EffectTeamAura, Magnitude: 0.15},
		{Effect: model.EffectDamageReduction, Magnitude: 0.10},
		{Effect: model.EffectDamageReduction, Magnitude: 0.05},
		{Effect: model.EffectTriggered, Magnitude: 3},
	})

	assert.InDelta(t, 0.15, caps.TeamAura, 1e-9)
	assert.InDelta(t, 0.15, caps.DamageReduction, 1e-9)
	assert.False(t, caps.Stacking)
}

func TestGatherYield(t *testing.T) {
	c := NewComposer(DefaultConfig(), nil)

	amount, doubled := c.GatherYield(Capabilities{GatherYield: 0.25}, 10, fixedRand(0))
	assert.Equal(t, int64(12), amount)
	assert.False(t, doubled)

	amount, doubled = c.GatherYield(Capabilities{GatherYield: 0.25, DoubleDrop: 0.10}, 10, fixedRand(0.05))
	assert.Equal(t, int64(24), amount)
	assert.True(t, doubled)

	amount, doubled = c.GatherYield(Capabilities{DoubleDrop: 0.10}, 10, fixedRand(0.5))
	assert.Equal(t, int64(10), amount)
	assert.False(t, doubled)

	amount, _ = c.GatherYield(Capabilities{}, 0, nil)
	assert.Zero(t, amount)
}

func TestRareFind(t *testing.T) {
	c := NewComposer(DefaultConfig(), nil)

	assert.False(t, c.RareFind(Capabilities{}, fixedRand(0)))
	assert.True(t, c.RareFind(Capabilities{RareFind: 0.05}, fixedRand(0.01)))
	assert.False(t, c.RareFind(Capabilities{RareFind: 0.05}, fixedRand(0.05)))
}

func TestMitigate(t *testing.T) {
	c := NewComposer(DefaultConfig(), nil)

	assert.InDelta(t, 80.0, c.Mitigate(Capabilities{DamageReduction: 0.20}, 100), 1e-9)
	assert.InDelta(t, 40.0, c.Mitigate(Capabilities{DamageReduction: 0.95}, 100), 1e-9, "capped")
	assert.InDelta(t, 100.0, c.Mitigate(Capabilities{}, 100), 1e-9)
	assert.Zero(t, c.Mitigate(Capabilities{DamageReduction: 0.2}, -3))
}

func TestSupportTransforms(t *testing.T) {
	c := NewComposer(DefaultConfig(), nil)
	caps := Capabilities{HealBoost: 0.25, HungerReduction: 0.5, ReviveSpeed: 1.0, Lifesteal: 0.05, Regen: 0.01, TeamAura: 0.1}

	assert.InDelta(t, 125.0, c.Heal(caps, 100), 1e-9)
	assert.InDelta(t, 1.0, c.HungerDrain(caps, 2), 1e-9)
	assert.Equal(t, 5*time.Second, c.ReviveDuration(caps, 10*time.Second))
	assert.InDelta(t, 5.0, c.Lifesteal(caps, 100), 1e-9)
	assert.InDelta(t, 0.01, c.Regen(caps), 1e-9)
	assert.InDelta(t, 0.1, c.TeamAura(caps), 1e-9)
	assert.Zero(t, c.HungerDrain(Capabilities{HungerReduction: 2}, 5))
	assert.Equal(t, 800*time.Millisecond, c.AttackInterval(Capabilities{AttackSpeed: 0.25}, time.Second))
	assert.Equal(t, time.Second, c.AttackInterval(Capabilities{}, time.Second))
	assert.Zero(t, c.AttackInterval(caps, 0))
}

func TestDamage_LifestealFromFinal(t *testing.T) {
	c := NewComposer(DefaultConfig(), nil)

	got := c.Damage(DamageInput{
		Attacker: "a", Target: "b",
		Base: 100, HealthRatio: 1,
		Caps: Capabilities{ArmorPen: true, Lifesteal: 0.05},
		Rand: fixedRand(0.99),
	})

	assert.InDelta(t, 115.0, got.Final, 1e-9)
	assert.InDelta(t, 115.0*0.05, got.Lifesteal, 1e-9)
	assert.Zero(t, c.Damage(DamageInput{Base: 100, HealthRatio: 1, Rand: fixedRand(0.5)}).Lifesteal)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "stacking", StageStacking.String())
	assert.Equal(t, "armor_pen", StageArmorPen.String())
	assert.Equal(t, "unknown", Stage(9).String())
}
