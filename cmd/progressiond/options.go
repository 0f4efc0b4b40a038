package main

import (
	"github.com/udisondev/survivalskills/internal/config"
	"github.com/udisondev/survivalskills/internal/engine"
	"github.com/udisondev/survivalskills/internal/game/effect"
	"github.com/udisondev/survivalskills/internal/game/progression"
	"github.com/udisondev/survivalskills/internal/game/stacks"
	"github.com/udisondev/survivalskills/internal/model"
)

// engineOptions maps the balance sections of the config onto component options.
func engineOptions(cfg config.Server) engine.Options {
	return engine.Options{
		Rules: progression.Rules{
			Costs:        model.TierCosts(cfg.Progression.TierCosts),
			MaxBudget:    cfg.Progression.MaxBudget,
			MaxUltimates: cfg.Progression.MaxUltimates,
		},
		XPThreshold: cfg.XP.Threshold,
		Stacks: stacks.Options{
			Window:        cfg.Stacks.Window,
			MaxStacks:     cfg.Stacks.MaxStacks,
			PerStackBonus: cfg.Stacks.PerStackBonus,
		},
		Composer: effect.Config{
			CritChance:         cfg.Composer.CritChance,
			CritMultiplier:     cfg.Composer.CritMultiplier,
			ExecuteThreshold:   cfg.Composer.ExecuteThreshold,
			ExecuteMultiplier:  cfg.Composer.ExecuteMultiplier,
			ArmorPenMultiplier: cfg.Composer.ArmorPenMultiplier,
			MaxMitigation:      cfg.Composer.MaxMitigation,
		},
		StoreTimeout: cfg.Storage.Timeout,

		FlushInterval:           cfg.Housekeeping.FlushInterval,
		CooldownCleanupInterval: cfg.Housekeeping.CooldownCleanupInterval,
		StackEvictInterval:      cfg.Housekeeping.StackEvictInterval,
		IdleRelease:             cfg.Housekeeping.IdleRelease,
	}
}
