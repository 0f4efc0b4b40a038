package config

import (
	"fmt"
	"time"
)

// ProgressionConfig holds unlock costs and caps.
type ProgressionConfig struct {
	TierCosts    [5]int32 `yaml:"tier_costs"` // tier_1..tier_4, ultimate
	MaxBudget    int32    `yaml:"max_budget"`
	MaxUltimates int32    `yaml:"max_ultimates"`
}

// DefaultProgression returns 5/10/15/20/25 costs, budget 100, two ultimates.
func DefaultProgression() ProgressionConfig {
	return ProgressionConfig{
		TierCosts:    [5]int32{5, 10, 15, 20, 25},
		MaxBudget:    100,
		MaxUltimates: 2,
	}
}

func (p ProgressionConfig) validate() error {
	for i, c := range p.TierCosts {
		if c <= 0 {
			return fmt.Errorf("progression.tier_costs[%d] must be positive, got %d", i, c)
		}
	}
	if p.MaxBudget <= 0 {
		return fmt.Errorf("progression.max_budget must be positive, got %d", p.MaxBudget)
	}
	if p.MaxUltimates < 0 {
		return fmt.Errorf("progression.max_ultimates must not be negative, got %d", p.MaxUltimates)
	}
	return nil
}

// XPConfig holds the XP → point conversion threshold.
type XPConfig struct {
	Threshold int64 `yaml:"threshold"`
}

// DefaultXP returns a 500 XP threshold.
func DefaultXP() XPConfig {
	return XPConfig{Threshold: 500}
}

// StacksConfig holds the consecutive-hit window.
type StacksConfig struct {
	Window        time.Duration `yaml:"window"`
	MaxStacks     int           `yaml:"max_stacks"`
	PerStackBonus float64       `yaml:"per_stack_bonus"`
}

// DefaultStacks returns a 5s window, 3 stacks, +5% per stack.
func DefaultStacks() StacksConfig {
	return StacksConfig{
		Window:        5 * time.Second,
		MaxStacks:     3,
		PerStackBonus: 0.05,
	}
}

// ComposerConfig holds damage pipeline constants.
type ComposerConfig struct {
	CritChance         float64 `yaml:"crit_chance"`
	CritMultiplier     float64 `yaml:"crit_multiplier"`
	ExecuteThreshold   float64 `yaml:"execute_threshold"`
	ExecuteMultiplier  float64 `yaml:"execute_multiplier"`
	ArmorPenMultiplier float64 `yaml:"armor_pen_multiplier"`
	MaxMitigation      float64 `yaml:"max_mitigation"`
}

// DefaultComposer: crit 20% ×1.5, execute <30% ×1.30, armor pen ×1.15, mitigation cap 60%.
func DefaultComposer() ComposerConfig {
	return ComposerConfig{
		CritChance:         0.20,
		CritMultiplier:     1.5,
		ExecuteThreshold:   0.30,
		ExecuteMultiplier:  1.30,
		ArmorPenMultiplier: 1.15,
		MaxMitigation:      0.60,
	}
}

func (c ComposerConfig) validate() error {
	if c.CritChance < 0 || c.CritChance > 1 {
		return fmt.Errorf("composer.crit_chance must be within [0, 1], got %v", c.CritChance)
	}
	if c.ExecuteThreshold < 0 || c.ExecuteThreshold > 1 {
		return fmt.Errorf("composer.execute_threshold must be within [0, 1], got %v", c.ExecuteThreshold)
	}
	if c.MaxMitigation < 0 || c.MaxMitigation >= 1 {
		return fmt.Errorf("composer.max_mitigation must be within [0, 1), got %v", c.MaxMitigation)
	}
	return nil
}
