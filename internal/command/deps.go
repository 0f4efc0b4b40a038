package command

import (
	"context"

	"github.com/udisondev/survivalskills/internal/data"
	"github.com/udisondev/survivalskills/internal/engine"
	"github.com/udisondev/survivalskills/internal/game/cooldown"
	"github.com/udisondev/survivalskills/internal/model"
)

// Engine is the part of *engine.Engine the commands drive.
type Engine interface {
	Catalog() *data.Catalog
	Snapshot(ctx context.Context, id model.PlayerID) engine.Snapshot
	Unlock(ctx context.Context, id model.PlayerID, skill model.SkillID) error
	CanUnlock(ctx context.Context, id model.PlayerID, skill model.SkillID) error
	ResetTree(ctx context.Context, id model.PlayerID, tree model.Tree) (int32, error)
	ResetAll(ctx context.Context, id model.PlayerID) (int32, error)
	ActivateSkill(ctx context.Context, id model.PlayerID, skill model.SkillID) (cooldown.Result, error)

	ForceUnlock(ctx context.Context, id model.PlayerID, skill model.SkillID) error
	GrantPoints(ctx context.Context, id model.PlayerID, n int32)
	SetXPMultiplier(ctx context.Context, id model.PlayerID, m float64) error
	ClearCooldown(ctx context.Context, id model.PlayerID, ability string)
	NewCycle(ctx context.Context)
	ResetPlayer(ctx context.Context, id model.PlayerID) (int32, error)
}

var _ Engine = (*engine.Engine)(nil)
