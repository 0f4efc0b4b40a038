package progression

import (
	"fmt"
	"time"

	"github.com/udisondev/survivalskills/internal/model"
)

// Rules are the balance limits the validator enforces.
type Rules struct {
	Costs        model.TierCosts
	MaxBudget    int32
	MaxUltimates int32
}

// DefaultRules returns 5/10/15/20/25 costs, budget 100, two ultimates.
func DefaultRules() Rules {
	return Rules{
		Costs:        model.DefaultTierCosts(),
		MaxBudget:    100,
		MaxUltimates: 2,
	}
}

// CanUnlock checks, in order: slot free, enough points, prerequisite tier,
// ultimate cap, budget. Returns the first failing check as *ValidationError.
func CanUnlock(p *model.Progression, rules Rules, tree model.Tree, tier model.Tier) error {
	if !tree.Valid() || !tier.Valid() {
		return &ValidationError{Reason: ReasonInvalidSlot, Tree: tree, Tier: tier}
	}

	// 1. Slot
	if p.Occupied(tree, tier) {
		return &ValidationError{Reason: ReasonSlotOccupied, Tree: tree, Tier: tier, Skill: p.Occupant(tree, tier)}
	}

	cost := rules.Costs.Cost(tier)

	// 2. Points
	if p.PointsAvailable < cost {
		return &ValidationError{Reason: ReasonInsufficientPoints, Tree: tree, Tier: tier, Need: cost, Have: p.PointsAvailable}
	}

	// 3. Prerequisite
	if prev, ok := tier.Prev(); ok && !p.Occupied(tree, prev) {
		return &ValidationError{Reason: ReasonMissingPrerequisite, Tree: tree, Tier: tier}
	}

	// 4. Ultimate cap
	if tier == model.TierUltimate && p.UltimateCount >= rules.MaxUltimates {
		return &ValidationError{Reason: ReasonMaxUltimates, Tree: tree, Tier: tier, Need: rules.MaxUltimates, Have: p.UltimateCount}
	}

	// 5. Budget
	if p.PointsSpent+cost > rules.MaxBudget {
		return &ValidationError{Reason: ReasonBudgetExceeded, Tree: tree, Tier: tier, Need: p.PointsSpent + cost, Have: rules.MaxBudget}
	}

	return nil
}

// Unlock re-validates and, only if every check passes, occupies the slot and
// moves the tier cost from available to spent. No partial mutation on error.
// Caller must hold the per-player lock.
func Unlock(p *model.Progression, rules Rules, tree model.Tree, tier model.Tier, skill model.SkillID) error {
	if err := CanUnlock(p, rules, tree, tier); err != nil {
		return err
	}
	occupy(p, rules, tree, tier, skill)
	return nil
}

// ForceUnlock is the privileged path: the slot and points checks are skipped,
// bookkeeping is not. Tier order, the ultimate cap and the budget still hold.
// Replacing an occupied slot swaps the occupant without touching totals.
// Available points never go below zero; spent always grows by the tier cost.
func ForceUnlock(p *model.Progression, rules Rules, tree model.Tree, tier model.Tier, skill model.SkillID) error {
	if !tree.Valid() || !tier.Valid() || skill == "" {
		return &ValidationError{Reason: ReasonInvalidSlot, Tree: tree, Tier: tier, Skill: skill}
	}
	if p.Occupied(tree, tier) {
		p.Slots[tree][tier] = skill
		return nil
	}
	if prev, ok := tier.Prev(); ok && !p.Occupied(tree, prev) {
		return &ValidationError{Reason: ReasonMissingPrerequisite, Tree: tree, Tier: tier}
	}
	if tier == model.TierUltimate && p.UltimateCount >= rules.MaxUltimates {
		return &ValidationError{Reason: ReasonMaxUltimates, Tree: tree, Tier: tier, Need: rules.MaxUltimates, Have: p.UltimateCount}
	}
	if cost := rules.Costs.Cost(tier); p.PointsSpent+cost > rules.MaxBudget {
		return &ValidationError{Reason: ReasonBudgetExceeded, Tree: tree, Tier: tier, Need: p.PointsSpent + cost, Have: rules.MaxBudget}
	}
	occupy(p, rules, tree, tier, skill)
	return nil
}

func occupy(p *model.Progression, rules Rules, tree model.Tree, tier model.Tier, skill model.SkillID) {
	cost := rules.Costs.Cost(tier)

	p.Slots[tree][tier] = skill
	p.PointsAvailable -= cost
	if p.PointsAvailable < 0 {
		p.PointsAvailable = 0
	}
	p.PointsSpent += cost
	if tier == model.TierUltimate {
		p.UltimateCount++
	}
}

// ResetTree clears every slot of the tree and refunds the summed cost.
// Returns the refunded amount.
func ResetTree(p *model.Progression, rules Rules, tree model.Tree) int32 {
	if !tree.Valid() {
		return 0
	}

	var refund int32
	for _, tier := range model.Tiers() {
		if !p.Occupied(tree, tier) {
			continue
		}
		refund += rules.Costs.Cost(tier)
		p.Slots[tree][tier] = ""
		if tier == model.TierUltimate {
			p.UltimateCount--
		}
	}

	p.PointsAvailable += refund
	p.PointsSpent -= refund
	return refund
}

// ResetAll resets every tree and records the reset time.
func ResetAll(p *model.Progression, rules Rules, now time.Time) int32 {
	var refund int32
	for _, tree := range model.Trees() {
		refund += ResetTree(p, rules, tree)
	}
	p.LastReset = now
	return refund
}

// CheckInvariants reports the first broken bookkeeping invariant, nil if consistent.
// Used by tests and by the store layer when loading rows.
func CheckInvariants(p *model.Progression, rules Rules) error {
	if got := p.SlotCost(rules.Costs); got != p.PointsSpent {
		return &InvariantError{What: "points spent", Want: got, Got: p.PointsSpent}
	}
	if got := p.OccupiedUltimates(); got != p.UltimateCount {
		return &InvariantError{What: "ultimate count", Want: got, Got: p.UltimateCount}
	}
	return nil
}

// InvariantError describes a progression whose counters disagree with its slots.
type InvariantError struct {
	What string
	Want int32
	Got  int32
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("progression invariant broken: %s = %d, slots imply %d", e.What, e.Got, e.Want)
}

// Repair recomputes PointsSpent and UltimateCount from the slots.
// PointsAvailable is left untouched. Returns true if anything changed.
func Repair(p *model.Progression, rules Rules) bool {
	spent := p.SlotCost(rules.Costs)
	ults := p.OccupiedUltimates()
	if spent == p.PointsSpent && ults == p.UltimateCount {
		return false
	}
	p.PointsSpent = spent
	p.UltimateCount = ults
	return true
}
