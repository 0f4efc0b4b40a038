package db

import (
	"time"

	"github.com/udisondev/survivalskills/internal/model"
)

// SlotColumn returns the column holding the occupant of (tree, tier), e.g. "combat_tier_1".
func SlotColumn(tree model.Tree, tier model.Tier) string {
	return tree.String() + "_" + tier.String()
}

// SlotColumns returns all 20 slot columns in tree-major, tier-minor order.
func SlotColumns() []string {
	cols := make([]string, 0, model.TreeCount*model.TierCount)
	for _, tree := range model.Trees() {
		for _, tier := range model.Tiers() {
			cols = append(cols, SlotColumn(tree, tier))
		}
	}
	return cols
}

// SlotValues returns the slot occupants in SlotColumns order; empty slots are NULL.
func SlotValues(p *model.Progression) []any {
	vals := make([]any, 0, model.TreeCount*model.TierCount)
	for _, tree := range model.Trees() {
		for _, tier := range model.Tiers() {
			if id := p.Slots[tree][tier]; id != "" {
				vals = append(vals, string(id))
			} else {
				vals = append(vals, nil)
			}
		}
	}
	return vals
}

// SetSlots fills p.Slots from scanned values in SlotColumns order.
func SetSlots(p *model.Progression, vals []*string) {
	i := 0
	for _, tree := range model.Trees() {
		for _, tier := range model.Tiers() {
			if i < len(vals) && vals[i] != nil {
				p.Slots[tree][tier] = model.SkillID(*vals[i])
			} else {
				p.Slots[tree][tier] = ""
			}
			i++
		}
	}
}

// NullTime maps the zero time to NULL.
func NullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ToMillis converts an expiry to the stored epoch-milliseconds form.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts stored epoch milliseconds back to time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
