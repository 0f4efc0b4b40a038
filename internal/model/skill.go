package model

import (
	"fmt"
	"strings"
)

// SkillID идентифицирует скилл в каталоге ("combat_momentum" и т.п.).
type SkillID string

// Tree is one of the four skill categories.
type Tree uint8

const (
	TreeCombat Tree = iota
	TreeGathering
	TreeSurvival
	TreeTeamwork
)

// TreeCount is the number of skill trees.
const TreeCount = 4

var treeNames = [TreeCount]string{"combat", "gathering", "survival", "teamwork"}

// Trees returns all trees in storage order.
func Trees() []Tree {
	return []Tree{TreeCombat, TreeGathering, TreeSurvival, TreeTeamwork}
}

func (t Tree) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tree(%d)", uint8(t))
	}
	return treeNames[t]
}

// Valid reports whether t is one of the known trees.
func (t Tree) Valid() bool {
	return t < TreeCount
}

// ParseTree parses a tree name (case-insensitive).
func ParseTree(s string) (Tree, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range treeNames {
		if name == s {
			return Tree(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tree %q", s)
}

// MarshalText implements encoding.TextMarshaler (JSON/YAML use tree names).
func (t Tree) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tree %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tree) UnmarshalText(b []byte) error {
	v, err := ParseTree(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Tier is an unlock level inside a tree. Tier1 is the entry tier, TierUltimate the top.
type Tier uint8

const (
	Tier1 Tier = iota
	Tier2
	Tier3
	Tier4
	TierUltimate
)

// TierCount is the number of tiers per tree.
const TierCount = 5

var tierNames = [TierCount]string{"tier_1", "tier_2", "tier_3", "tier_4", "ultimate"}

// Tiers returns all tiers from lowest to highest.
func Tiers() []Tier {
	return []Tier{Tier1, Tier2, Tier3, Tier4, TierUltimate}
}

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
	return tierNames[t]
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t < TierCount
}

// Prev returns the prerequisite tier. ok is false for Tier1.
func (t Tier) Prev() (Tier, bool) {
	if t == Tier1 || !t.Valid() {
		return 0, false
	}
	return t - 1, true
}

// ParseTier accepts "tier_1".."tier_4", "1".."4", "ultimate"/"u".
func ParseTier(s string) (Tier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "1", "t1":
		return Tier1, nil
	case "2", "t2":
		return Tier2, nil
	case "3", "t3":
		return Tier3, nil
	case "4", "t4":
		return Tier4, nil
	case "u", "ult":
		return TierUltimate, nil
	}
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TierCosts holds the point cost of each tier, indexed by Tier.
type TierCosts [TierCount]int32

// DefaultTierCosts returns 5/10/15/20/25.
func DefaultTierCosts() TierCosts {
	return TierCosts{5, 10, 15, 20, 25}
}

// Cost returns the cost of a tier (0 for an invalid tier).
func (c TierCosts) Cost(t Tier) int32 {
	if !t.Valid() {
		return 0
	}
	return c[t]
}

// SkillKind describes how a skill is used.
type SkillKind uint8

const (
	KindPassive SkillKind = iota
	KindActive
	KindBoth
)

var kindNames = [...]string{"passive", "active", "both"}

func (k SkillKind) String() string {
	if int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// IsActivatable reports whether the skill can be triggered (and has a cooldown).
func (k SkillKind) IsActivatable() bool {
	return k == KindActive || k == KindBoth
}

// IsPassive reports whether the skill contributes a permanent modifier.
func (k SkillKind) IsPassive() bool {
	return k == KindPassive || k == KindBoth
}

// MarshalText implements encoding.TextMarshaler.
func (k SkillKind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("invalid skill kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SkillKind) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for i, name := range kindNames {
		if name == s {
			*k = SkillKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown skill kind %q", s)
}

// EffectTag names the runtime modifier a skill grants.
// Generic logic (effect.Composer) dispatches on the tag, not on the skill ID.
type EffectTag string

const (
	EffectNone EffectTag = ""

	// Combat
	EffectStacking    EffectTag = "stacking"
	EffectCritical    EffectTag = "critical"
	EffectExecute     EffectTag = "execute"
	EffectArmorPen    EffectTag = "armor_pen"
	EffectAttackSpeed EffectTag = "attack_speed"
	EffectLifesteal   EffectTag = "lifesteal"

	// Gathering
	EffectGatherYield EffectTag = "gather_yield"
	EffectDoubleDrop  EffectTag = "double_drop"
	EffectRareFind    EffectTag = "rare_find"

	// Survival
	EffectDamageReduction EffectTag = "damage_reduction"
	EffectRegen           EffectTag = "regen"
	EffectHungerReduction EffectTag = "hunger_reduction"

	// Teamwork
	EffectTeamAura    EffectTag = "team_aura"
	EffectHealBoost   EffectTag = "heal_boost"
	EffectReviveSpeed EffectTag = "revive_speed"

	// Triggered abilities: the effect itself is executed by the caller after activation.
	EffectTriggered EffectTag = "triggered"
)

// SkillDescriptor — неизменяемое описание скилла в каталоге.
type SkillDescriptor struct {
	ID          SkillID   `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Tree        Tree      `yaml:"tree" json:"tree"`
	Tier        Tier      `yaml:"tier" json:"tier"`
	Cost        int32     `yaml:"-" json:"cost"`
	Kind        SkillKind `yaml:"kind" json:"kind"`
	Description string    `yaml:"description" json:"description"`
	Effect      EffectTag `yaml:"effect" json:"effect"`
	Magnitude   float64   `yaml:"magnitude" json:"magnitude"`
	Cooldown    int64     `yaml:"cooldown" json:"cooldown"` // seconds, active/both only
}

// IsUltimate reports whether the skill occupies the ultimate tier.
func (d SkillDescriptor) IsUltimate() bool {
	return d.Tier == TierUltimate
}
