package data

import "github.com/udisondev/survivalskills/internal/model"

// skillDef — одна запись встроенной таблицы скиллов.
// Cost не задаётся: стоимость определяется тиром.
type skillDef struct {
	id          model.SkillID
	name        string
	tree        model.Tree
	tier        model.Tier
	kind        model.SkillKind
	effect      model.EffectTag
	magnitude   float64
	cooldown    int64 // seconds
	description string
}

// builtinSkills is the default catalog: two choices per (tree, tier) slot.
var builtinSkills = []skillDef{
	// Combat
	{"combat_momentum", "Momentum", model.TreeCombat, model.Tier1, model.KindPassive, model.EffectStacking, 0.05, 0,
		"Consecutive hits on the same target stack +5% damage, up to 3 stacks."},
	{"combat_quickdraw", "Quickdraw", model.TreeCombat, model.Tier1, model.KindPassive, model.EffectAttackSpeed, 0.10, 0,
		"+10% attack speed."},
	{"combat_precision", "Precision", model.TreeCombat, model.Tier2, model.KindPassive, model.EffectCritical, 0.20, 0,
		"20% chance to deal 150% damage."},
	{"combat_bloodlust", "Bloodlust", model.TreeCombat, model.Tier2, model.KindPassive, model.EffectLifesteal, 0.05, 0,
		"Heal for 5% of damage dealt."},
	{"combat_executioner", "Executioner", model.TreeCombat, model.Tier3, model.KindPassive, model.EffectExecute, 0.30, 0,
		"+30% damage against targets below 30% health."},
	{"combat_berserk", "Berserk", model.TreeCombat, model.Tier3, model.KindActive, model.EffectTriggered, 0.25, 60,
		"Enter a rage for 10 seconds, dealing 25% more damage."},
	{"combat_piercing", "Piercing Strikes", model.TreeCombat, model.Tier4, model.KindPassive, model.EffectArmorPen, 0.30, 0,
		"Attacks ignore 30% of armor."},
	{"combat_whirlwind", "Whirlwind", model.TreeCombat, model.Tier4, model.KindActive, model.EffectTriggered, 1.0, 45,
		"Spin and strike every enemy around you."},
	{"combat_warlord", "Warlord", model.TreeCombat, model.TierUltimate, model.KindBoth, model.EffectTeamAura, 0.10, 180,
		"Nearby allies deal 10% more damage; activate to rally them for a charge."},
	{"combat_deathblow", "Deathblow", model.TreeCombat, model.TierUltimate, model.KindActive, model.EffectTriggered, 3.0, 240,
		"Your next hit deals triple damage."},

	// Gathering
	{"gathering_efficient_miner", "Efficient Miner", model.TreeGathering, model.Tier1, model.KindPassive, model.EffectGatherYield, 0.10, 0,
		"+10% ore yield."},
	{"gathering_lumberjack", "Lumberjack", model.TreeGathering, model.Tier1, model.KindPassive, model.EffectGatherYield, 0.10, 0,
		"+10% wood yield."},
	{"gathering_double_drop", "Lucky Hands", model.TreeGathering, model.Tier2, model.KindPassive, model.EffectDoubleDrop, 0.15, 0,
		"15% chance to double any harvested drop."},
	{"gathering_prospector", "Prospector", model.TreeGathering, model.Tier2, model.KindPassive, model.EffectRareFind, 0.03, 0,
		"Small chance to find rare minerals."},
	{"gathering_vein_miner", "Vein Miner", model.TreeGathering, model.Tier3, model.KindActive, model.EffectTriggered, 1.0, 30,
		"Break an entire ore vein at once."},
	{"gathering_auto_smelt", "Auto Smelt", model.TreeGathering, model.Tier3, model.KindPassive, model.EffectGatherYield, 0.15, 0,
		"Ores are smelted on pickup, +15% yield."},
	{"gathering_treasure_hunter", "Treasure Hunter", model.TreeGathering, model.Tier4, model.KindPassive, model.EffectRareFind, 0.05, 0,
		"5% chance to find treasure while gathering."},
	{"gathering_excavator", "Excavator", model.TreeGathering, model.Tier4, model.KindActive, model.EffectTriggered, 1.0, 60,
		"Dig a 3x3 area for 15 seconds."},
	{"gathering_midas_touch", "Midas Touch", model.TreeGathering, model.TierUltimate, model.KindActive, model.EffectTriggered, 1.0, 300,
		"Turn the next harvested block into gold."},
	{"gathering_resource_master", "Resource Master", model.TreeGathering, model.TierUltimate, model.KindPassive, model.EffectGatherYield, 0.50, 0,
		"+50% yield on every resource."},

	// Survival
	{"survival_thick_skin", "Thick Skin", model.TreeSurvival, model.Tier1, model.KindPassive, model.EffectDamageReduction, 0.05, 0,
		"Take 5% less damage."},
	{"survival_forager", "Forager", model.TreeSurvival, model.Tier1, model.KindPassive, model.EffectHungerReduction, 0.20, 0,
		"Hunger drains 20% slower."},
	{"survival_regeneration", "Regeneration", model.TreeSurvival, model.Tier2, model.KindPassive, model.EffectRegen, 0.5, 0,
		"Regenerate half a heart every few seconds out of combat."},
	{"survival_fire_resist", "Fire Resistance", model.TreeSurvival, model.Tier2, model.KindPassive, model.EffectDamageReduction, 0.05, 0,
		"Take 5% less damage from all sources, more from fire."},
	{"survival_second_wind", "Second Wind", model.TreeSurvival, model.Tier3, model.KindActive, model.EffectTriggered, 0.30, 120,
		"Instantly restore 30% of your health."},
	{"survival_iron_lungs", "Iron Lungs", model.TreeSurvival, model.Tier3, model.KindPassive, model.EffectHungerReduction, 0.30, 0,
		"Breathe longer underwater and lose hunger 30% slower."},
	{"survival_last_stand", "Last Stand", model.TreeSurvival, model.Tier4, model.KindBoth, model.EffectDamageReduction, 0.10, 300,
		"Take 10% less damage; activate to become unkillable for 5 seconds."},
	{"survival_fortify", "Fortify", model.TreeSurvival, model.Tier4, model.KindPassive, model.EffectDamageReduction, 0.10, 0,
		"Take 10% less damage."},
	{"survival_phoenix", "Phoenix", model.TreeSurvival, model.TierUltimate, model.KindBoth, model.EffectRegen, 1.0, 600,
		"Revive once with full health when killed."},
	{"survival_undying", "Undying", model.TreeSurvival, model.TierUltimate, model.KindActive, model.EffectTriggered, 1.0, 400,
		"Ignore all damage for 8 seconds."},

	// Teamwork
	{"teamwork_rally", "Rally", model.TreeTeamwork, model.Tier1, model.KindPassive, model.EffectTeamAura, 0.05, 0,
		"Nearby allies deal 5% more damage."},
	{"teamwork_medic", "Medic", model.TreeTeamwork, model.Tier1, model.KindPassive, model.EffectHealBoost, 0.20, 0,
		"Healing you apply to allies is 20% stronger."},
	{"teamwork_shared_vision", "Shared Vision", model.TreeTeamwork, model.Tier2, model.KindPassive, model.EffectNone, 0, 0,
		"Enemies you see are highlighted for your team."},
	{"teamwork_supply_drop", "Supply Drop", model.TreeTeamwork, model.Tier2, model.KindActive, model.EffectTriggered, 1.0, 180,
		"Call in a supply crate for your team."},
	{"teamwork_guardian", "Guardian", model.TreeTeamwork, model.Tier3, model.KindPassive, model.EffectDamageReduction, 0.05, 0,
		"You and nearby allies take 5% less damage."},
	{"teamwork_war_cry", "War Cry", model.TreeTeamwork, model.Tier3, model.KindActive, model.EffectTriggered, 0.15, 90,
		"Boost allied damage by 15% for 10 seconds."},
	{"teamwork_quick_revive", "Quick Revive", model.TreeTeamwork, model.Tier4, model.KindPassive, model.EffectReviveSpeed, 0.50, 0,
		"Revive teammates 50% faster."},
	{"teamwork_beacon", "Beacon", model.TreeTeamwork, model.Tier4, model.KindActive, model.EffectTriggered, 1.0, 240,
		"Place a respawn beacon for your team."},
	{"teamwork_commander", "Commander", model.TreeTeamwork, model.TierUltimate, model.KindPassive, model.EffectTeamAura, 0.15, 0,
		"Nearby allies deal 15% more damage."},
	{"teamwork_sanctuary", "Sanctuary", model.TreeTeamwork, model.TierUltimate, model.KindActive, model.EffectTriggered, 1.0, 600,
		"Create a zone that fully heals allies for 10 seconds."},
}

// builtinDescriptors converts the literal table into descriptors.
func builtinDescriptors() []model.SkillDescriptor {
	out := make([]model.SkillDescriptor, 0, len(builtinSkills))
	for _, d := range builtinSkills {
		out = append(out, model.SkillDescriptor{
			ID:          d.id,
			Name:        d.name,
			Tree:        d.tree,
			Tier:        d.tier,
			Kind:        d.kind,
			Description: d.description,
			Effect:      d.effect,
			Magnitude:   d.magnitude,
			Cooldown:    d.cooldown,
		})
	}
	return out
}
