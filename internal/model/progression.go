package model

import "time"

// PlayerID identifies a player of the game mode.
type PlayerID string

// EntityID identifies any damageable target (player, mob, structure).
type EntityID string

// Progression holds the unlocked-skill state of one player.
//
// Slots[tree][tier] is the occupant skill of that slot, "" when unoccupied.
// Invariants maintained by progression.Unlock/ResetTree/ForceUnlock:
//   - PointsSpent == Σ cost(tier) over occupied slots
//   - UltimateCount == number of occupied ultimate slots
//
// Progression is a plain value; the progression.Manager owns the live copies.
type Progression struct {
	PlayerID        PlayerID
	PointsAvailable int32
	PointsSpent     int32
	Slots           [TreeCount][TierCount]SkillID
	UltimateCount   int32
	LastReset       time.Time
}

// NewProgression returns an empty progression for the player.
func NewProgression(id PlayerID) *Progression {
	return &Progression{PlayerID: id}
}

// Occupant returns the skill in the slot, "" if unoccupied or out of range.
func (p *Progression) Occupant(tree Tree, tier Tier) SkillID {
	if !tree.Valid() || !tier.Valid() {
		return ""
	}
	return p.Slots[tree][tier]
}

// Occupied reports whether the slot holds a skill.
func (p *Progression) Occupied(tree Tree, tier Tier) bool {
	return p.Occupant(tree, tier) != ""
}

// HasSkill reports whether the skill occupies any slot.
func (p *Progression) HasSkill(id SkillID) bool {
	if id == "" {
		return false
	}
	for tree := range p.Slots {
		for tier := range p.Slots[tree] {
			if p.Slots[tree][tier] == id {
				return true
			}
		}
	}
	return false
}

// Unlocked returns all occupied skill IDs in tree/tier order.
func (p *Progression) Unlocked() []SkillID {
	out := make([]SkillID, 0, TreeCount*TierCount)
	for tree := range p.Slots {
		for tier := range p.Slots[tree] {
			if id := p.Slots[tree][tier]; id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

// OccupiedUltimates counts occupied ultimate slots across all trees.
func (p *Progression) OccupiedUltimates() int32 {
	var n int32
	for tree := range p.Slots {
		if p.Slots[tree][TierUltimate] != "" {
			n++
		}
	}
	return n
}

// SlotCost sums the tier costs of all occupied slots.
func (p *Progression) SlotCost(costs TierCosts) int32 {
	var sum int32
	for tree := range p.Slots {
		for tier := range p.Slots[tree] {
			if p.Slots[tree][tier] != "" {
				sum += costs[tier]
			}
		}
	}
	return sum
}

// Clear empties all slots and counters, keeping PlayerID.
// Ничего не возвращает игроку: используется при новом цикле.
func (p *Progression) Clear(at time.Time) {
	id := p.PlayerID
	*p = Progression{PlayerID: id, LastReset: at}
}

// Clone returns an independent copy (Slots is an array, so a value copy suffices).
func (p *Progression) Clone() Progression {
	return *p
}

// XPState tracks experience of one player.
//
// TotalXP is historical and only grows. CurrentXP is progress toward the next point
// and drops by the threshold on every conversion.
type XPState struct {
	PlayerID   PlayerID
	TotalXP    int64
	CurrentXP  int64
	Multiplier float64
}

// NewXPState returns a zeroed state with multiplier 1.0.
func NewXPState(id PlayerID) *XPState {
	return &XPState{PlayerID: id, Multiplier: 1.0}
}
