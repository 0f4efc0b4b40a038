package effect

import "github.com/udisondev/survivalskills/internal/model"

// Capabilities is the effect-relevant view of a player's unlocked skills.
// Additive tags are summed; TeamAura keeps the highest single aura.
type Capabilities struct {
	Stacking bool
	Critical bool
	Execute  bool
	ArmorPen bool

	AttackSpeed float64
	Lifesteal   float64

	GatherYield float64
	DoubleDrop  float64
	RareFind    float64

	DamageReduction float64
	Regen           float64
	HungerReduction float64

	TeamAura    float64
	HealBoost   float64
	ReviveSpeed float64
}

// CapabilitiesOf folds descriptors into Capabilities. Descriptors tagged
// EffectNone or EffectTriggered do not contribute.
func CapabilitiesOf(descs []model.SkillDescriptor) Capabilities {
	var c Capabilities
	for _, d := range descs {
		switch d.Effect {
		case model.EffectStacking:
			c.Stacking = true
		case model.EffectCritical:
			c.Critical = true
		case model.EffectExecute:
			c.Execute = true
		case model.EffectArmorPen:
			c.ArmorPen = true
		case model.EffectAttackSpeed:
			c.AttackSpeed += d.Magnitude
		case model.EffectLifesteal:
			c.Lifesteal += d.Magnitude
		case model.EffectGatherYield:
			c.GatherYield += d.Magnitude
		case model.EffectDoubleDrop:
			c.DoubleDrop += d.Magnitude
		case model.EffectRareFind:
			c.RareFind += d.Magnitude
		case model.EffectDamageReduction:
			c.DamageReduction += d.Magnitude
		case model.EffectRegen:
			c.Regen += d.Magnitude
		case model.EffectHungerReduction:
			c.HungerReduction += d.Magnitude
		case model.EffectTeamAura:
			c.TeamAura = max(c.TeamAura, d.Magnitude)
		case model.EffectHealBoost:
			c.HealBoost += d.Magnitude
		case model.EffectReviveSpeed:
			c.ReviveSpeed += d.Magnitude
		}
	}
	return c
}
