// Package effect turns unlocked skills into runtime value transforms.
//
// Damage runs a fixed pipeline: stacking → critical → execute → armor
// penetration. Each stage consumes the previous stage's output and is a no-op
// when the attacker lacks the capability. The only side effect is the stack
// hit recorded by the stacking stage.
package effect

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/udisondev/survivalskills/internal/model"
)

// Stage identifies one damage pipeline step.
type Stage int

const (
	StageStacking Stage = iota
	StageCritical
	StageExecute
	StageArmorPen
)

var stageNames = [...]string{"stacking", "critical", "execute", "armor_pen"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// MarshalText encodes the stage name (JSON feed).
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Rand is the random source used for chance rolls. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Stacker is the StackTracker surface the stacking stage needs.
type Stacker interface {
	Hit(actor, target model.EntityID) int
	Multiplier(stacks int) float64
}

// Config holds the balance constants of every transform.
type Config struct {
	CritChance         float64
	CritMultiplier     float64
	ExecuteThreshold   float64
	ExecuteMultiplier  float64
	ArmorPenMultiplier float64
	MaxMitigation      float64
}

// DefaultConfig: crit 20% ×1.5, execute below 30% health ×1.30, armor pen ×1.15,
// mitigation capped at 60%.
func DefaultConfig() Config {
	return Config{
		CritChance:         0.20,
		CritMultiplier:     1.5,
		ExecuteThreshold:   0.30,
		ExecuteMultiplier:  1.30,
		ArmorPenMultiplier: 1.15,
		MaxMitigation:      0.60,
	}
}

// DamageInput is one outgoing hit.
type DamageInput struct {
	Attacker    model.EntityID
	Target      model.EntityID
	Base        float64
	HealthRatio float64 // target health / max health, 0..1
	Caps        Capabilities
	Rand        Rand // nil ⇒ math/rand/v2 global source
}

// DamageResult is the pipeline output.
type DamageResult struct {
	Final  float64 `json:"final"`
	Fired  []Stage `json:"fired"`
	Stacks int     `json:"stacks"`
	// Lifesteal is the healing the attacker earns from Final.
	Lifesteal float64 `json:"lifesteal"`
}

// Has reports whether the stage fired.
func (r DamageResult) Has(s Stage) bool {
	for _, f := range r.Fired {
		if f == s {
			return true
		}
	}
	return false
}

// Composer applies Config to capability sets. Safe for concurrent use.
type Composer struct {
	cfg    Config
	stacks Stacker
}

// NewComposer creates a Composer. stacks may be nil, disabling the stacking stage.
func NewComposer(cfg Config, stacks Stacker) *Composer {
	return &Composer{cfg: cfg, stacks: stacks}
}

// Config returns the constants in force.
func (c *Composer) Config() Config {
	return c.cfg
}

// Damage runs the damage pipeline. Non-positive or NaN base damage passes
// through as 0 with no stages fired and no stack recorded.
func (c *Composer) Damage(in DamageInput) DamageResult {
	if !(in.Base > 0) {
		return DamageResult{}
	}
	rng := in.Rand
	if rng == nil {
		rng = globalRand{}
	}

	out := DamageResult{Final: in.Base, Fired: make([]Stage, 0, 4)}

	// 1. Stacking
	if in.Caps.Stacking && c.stacks != nil {
		out.Stacks = c.stacks.Hit(in.Attacker, in.Target)
		out.Final *= c.stacks.Multiplier(out.Stacks)
		out.Fired = append(out.Fired, StageStacking)
	}

	// 2. Critical
	if in.Caps.Critical && rng.Float64() < c.cfg.CritChance {
		out.Final *= c.cfg.CritMultiplier
		out.Fired = append(out.Fired, StageCritical)
	}

	// 3. Execute
	if in.Caps.Execute && in.HealthRatio < c.cfg.ExecuteThreshold {
		out.Final *= c.cfg.ExecuteMultiplier
		out.Fired = append(out.Fired, StageExecute)
	}

	// 4. Armor penetration
	if in.Caps.ArmorPen {
		out.Final *= c.cfg.ArmorPenMultiplier
		out.Fired = append(out.Fired, StageArmorPen)
	}

	out.Lifesteal = c.Lifesteal(in.Caps, out.Final)
	return out
}

// GatherYield scales a gathered amount by the yield bonus and rolls the
// double-drop chance. Returns the amount and whether it doubled.
func (c *Composer) GatherYield(caps Capabilities, base int64, rng Rand) (int64, bool) {
	if base <= 0 {
		return 0, false
	}
	if rng == nil {
		rng = globalRand{}
	}

	amount := int64(math.Floor(float64(base) * (1 + caps.GatherYield)))
	if amount < base {
		amount = base
	}

	doubled := caps.DoubleDrop > 0 && rng.Float64() < caps.DoubleDrop
	if doubled {
		amount *= 2
	}
	return amount, doubled
}

// RareFind rolls the rare-drop chance.
func (c *Composer) RareFind(caps Capabilities, rng Rand) bool {
	if caps.RareFind <= 0 {
		return false
	}
	if rng == nil {
		rng = globalRand{}
	}
	return rng.Float64() < caps.RareFind
}

// Mitigate reduces incoming damage by the summed reduction, capped at MaxMitigation.
func (c *Composer) Mitigate(caps Capabilities, incoming float64) float64 {
	if !(incoming > 0) {
		return 0
	}
	reduction := min(max(caps.DamageReduction, 0), c.cfg.MaxMitigation)
	return incoming * (1 - reduction)
}

// TeamAura returns the damage bonus granted to nearby allies (highest aura wins).
func (c *Composer) TeamAura(caps Capabilities) float64 {
	return max(caps.TeamAura, 0)
}

// Heal scales outgoing healing.
func (c *Composer) Heal(caps Capabilities, amount float64) float64 {
	if !(amount > 0) {
		return 0
	}
	return amount * (1 + max(caps.HealBoost, 0))
}

// HungerDrain scales hunger loss; never below zero.
func (c *Composer) HungerDrain(caps Capabilities, drain float64) float64 {
	if !(drain > 0) {
		return 0
	}
	return drain * max(1-caps.HungerReduction, 0)
}

// ReviveDuration shortens a revive channel by the revive-speed bonus.
func (c *Composer) ReviveDuration(caps Capabilities, base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return time.Duration(float64(base) / (1 + max(caps.ReviveSpeed, 0)))
}

// AttackInterval shortens the time between attacks by the attack-speed bonus.
func (c *Composer) AttackInterval(caps Capabilities, base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return time.Duration(float64(base) / (1 + max(caps.AttackSpeed, 0)))
}

// Regen returns health restored per second, as a fraction of max health.
func (c *Composer) Regen(caps Capabilities) float64 {
	return max(caps.Regen, 0)
}

// Lifesteal returns the healing earned from dealt damage.
func (c *Composer) Lifesteal(caps Capabilities, dealt float64) float64 {
	if !(dealt > 0) || caps.Lifesteal <= 0 {
		return 0
	}
	return dealt * caps.Lifesteal
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
