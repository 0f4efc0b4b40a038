package engine

import (
	"context"
	"sort"
	"time"

	"github.com/udisondev/survivalskills/internal/model"
)

// Snapshot is the read-only projection of one player shown in menus and feeds.
type Snapshot struct {
	PlayerID        model.PlayerID  `json:"player_id"`
	PointsAvailable int32           `json:"points_available"`
	PointsSpent     int32           `json:"points_spent"`
	MaxBudget       int32           `json:"max_budget"`
	UltimateCount   int32           `json:"ultimate_count"`
	MaxUltimates    int32           `json:"max_ultimates"`
	Trees           []TreeView      `json:"trees"`
	XP              XPView          `json:"xp"`
	Cooldowns       []CooldownView  `json:"cooldowns"`
	Unlocked        []model.SkillID `json:"unlocked"`
}

// TreeView lists the tiers of one tree.
type TreeView struct {
	Tree  model.Tree `json:"tree"`
	Spent int32      `json:"spent"`
	Slots []SlotView `json:"slots"`
}

// SlotView is one tier slot. Skill is empty when unoccupied.
type SlotView struct {
	Tier  model.Tier    `json:"tier"`
	Cost  int32         `json:"cost"`
	Skill model.SkillID `json:"skill,omitempty"`
	Name  string        `json:"name,omitempty"`
}

// XPView is experience progress toward the next point.
type XPView struct {
	Total      int64   `json:"total"`
	Current    int64   `json:"current"`
	Threshold  int64   `json:"threshold"`
	Percent    float64 `json:"percent"`
	Multiplier float64 `json:"multiplier"`
}

// CooldownView is one running gate.
type CooldownView struct {
	Ability          string `json:"ability"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// Snapshot builds the projection. Cooldowns are sorted by ability name.
func (e *Engine) Snapshot(ctx context.Context, id model.PlayerID) Snapshot {
	e.touch(id)
	p := e.progression.Snapshot(ctx, id)
	x := e.xp.State(ctx, id)
	rules := e.progression.Rules()

	s := Snapshot{
		PlayerID:        id,
		PointsAvailable: p.PointsAvailable,
		PointsSpent:     p.PointsSpent,
		MaxBudget:       rules.MaxBudget,
		UltimateCount:   p.UltimateCount,
		MaxUltimates:    rules.MaxUltimates,
		Trees:           make([]TreeView, 0, model.TreeCount),
		Unlocked:        p.Unlocked(),
		XP: XPView{
			Total:      x.TotalXP,
			Current:    x.CurrentXP,
			Threshold:  e.xp.Threshold(),
			Percent:    float64(x.CurrentXP) * 100 / float64(e.xp.Threshold()),
			Multiplier: x.Multiplier,
		},
	}

	for _, tree := range model.Trees() {
		tv := TreeView{Tree: tree, Slots: make([]SlotView, 0, model.TierCount)}
		for _, tier := range model.Tiers() {
			sv := SlotView{Tier: tier, Cost: rules.Costs.Cost(tier)}
			if skill := p.Occupant(tree, tier); skill != "" {
				sv.Skill = skill
				if d, ok := e.catalog.Skill(skill); ok {
					sv.Name = d.Name
				}
				tv.Spent += sv.Cost
			}
			tv.Slots = append(tv.Slots, sv)
		}
		s.Trees = append(s.Trees, tv)
	}

	remaining := e.cooldowns.Remaining(ctx, id)
	s.Cooldowns = make([]CooldownView, 0, len(remaining))
	for ability, d := range remaining {
		s.Cooldowns = append(s.Cooldowns, CooldownView{Ability: ability, RemainingSeconds: ceilSeconds(d)})
	}
	sort.Slice(s.Cooldowns, func(i, j int) bool { return s.Cooldowns[i].Ability < s.Cooldowns[j].Ability })

	return s
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
