package engine_test

import (
	"github.com/udisondev/survivalskills/internal/db"
	"github.com/udisondev/survivalskills/internal/db/memory"
	"github.com/udisondev/survivalskills/internal/db/rediscd"
	"github.com/udisondev/survivalskills/internal/db/sqlite"
	"github.com/udisondev/survivalskills/internal/game/cooldown"
	"github.com/udisondev/survivalskills/internal/game/progression"
	"github.com/udisondev/survivalskills/internal/game/xp"
)

// Every backend must satisfy the component stores it is wired to.
var (
	_ progression.Store = (*db.ProgressionRepository)(nil)
	_ xp.Store          = (*db.ProgressionRepository)(nil)
	_ cooldown.Store    = (*db.CooldownRepository)(nil)

	_ progression.Store = (*sqlite.Store)(nil)
	_ xp.Store          = (*sqlite.Store)(nil)
	_ cooldown.Store    = (*sqlite.Store)(nil)

	_ cooldown.Store = (*rediscd.Store)(nil)

	_ progression.Store = (*memory.Store)(nil)
	_ xp.Store          = (*memory.Store)(nil)
	_ cooldown.Store    = (*memory.Store)(nil)
)
