package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/udisondev/survivalskills/internal/model"
)

// ForceUnlock handles //forceunlock <player> <skill>.
type ForceUnlock struct{ eng Engine }

func NewForceUnlock(eng Engine) *ForceUnlock { return &ForceUnlock{eng: eng} }

func (c *ForceUnlock) Names() []string           { return []string{"forceunlock", "force_unlock"} }
func (c *ForceUnlock) Usage() string             { return "//forceunlock <player> <skill>" }
func (c *ForceUnlock) RequiredAccessLevel() int32 { return 2 }

func (c *ForceUnlock) Handle(ctx context.Context, _ model.PlayerID, args []string) (string, error) {
	if len(args) < 3 {
		return "", usageError(c)
	}
	target := model.PlayerID(args[1])
	skill := model.SkillID(strings.ToLower(args[2]))

	if err := c.eng.ForceUnlock(ctx, target, skill); err != nil {
		return "", fmt.Errorf("force unlock: %w", err)
	}
	return fmt.Sprintf("Force-unlocked %s for %s", skill, target), nil
}

// GivePoints handles //givepoints <player> <n>.
type GivePoints struct{ eng Engine }

func NewGivePoints(eng Engine) *GivePoints { return &GivePoints{eng: eng} }

func (c *GivePoints) Names() []string           { return []string{"givepoints", "give_points"} }
func (c *GivePoints) Usage() string             { return "//givepoints <player> <n>" }
func (c *GivePoints) RequiredAccessLevel() int32 { return 2 }

func (c *GivePoints) Handle(ctx context.Context, _ model.PlayerID, args []string) (string, error) {
	if len(args) < 3 {
		return "", usageError(c)
	}
	target := model.PlayerID(args[1])

	n, err := strconv.ParseInt(args[2], 10, 32)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", args[2], err)
	}
	if n <= 0 {
		return "", fmt.Errorf("amount must be positive, got %d", n)
	}

	c.eng.GrantPoints(ctx, target, int32(n))
	return fmt.Sprintf("Gave %d points to %s", n, target), nil
}

// XPRate handles //xprate <player> <multiplier>.
type XPRate struct{ eng Engine }

func NewXPRate(eng Engine) *XPRate { return &XPRate{eng: eng} }

func (c *XPRate) Names() []string           { return []string{"xprate", "xp_rate"} }
func (c *XPRate) Usage() string             { return "//xprate <player> <multiplier>" }
func (c *XPRate) RequiredAccessLevel() int32 { return 2 }

func (c *XPRate) Handle(ctx context.Context, _ model.PlayerID, args []string) (string, error) {
	if len(args) < 3 {
		return "", usageError(c)
	}
	target := model.PlayerID(args[1])

	m, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return "", fmt.Errorf("invalid multiplier %q: %w", args[2], err)
	}
	if err := c.eng.SetXPMultiplier(ctx, target, m); err != nil {
		return "", err
	}
	return fmt.Sprintf("XP rate of %s set to x%.2f", target, m), nil
}

// CooldownClear handles //cdclear <player> <ability>.
type CooldownClear struct{ eng Engine }

func NewCooldownClear(eng Engine) *CooldownClear { return &CooldownClear{eng: eng} }

func (c *CooldownClear) Names() []string           { return []string{"cdclear", "cd_clear"} }
func (c *CooldownClear) Usage() string             { return "//cdclear <player> <ability>" }
func (c *CooldownClear) RequiredAccessLevel() int32 { return 1 }

func (c *CooldownClear) Handle(ctx context.Context, _ model.PlayerID, args []string) (string, error) {
	if len(args) < 3 {
		return "", usageError(c)
	}
	target := model.PlayerID(args[1])
	c.eng.ClearCooldown(ctx, target, args[2])
	return fmt.Sprintf("Cleared %s cooldown of %s", args[2], target), nil
}

// NewCycle handles //newcycle — wipes every progression without refund.
type NewCycle struct{ eng Engine }

func NewNewCycle(eng Engine) *NewCycle { return &NewCycle{eng: eng} }

func (c *NewCycle) Names() []string           { return []string{"newcycle", "new_cycle"} }
func (c *NewCycle) Usage() string             { return "//newcycle" }
func (c *NewCycle) RequiredAccessLevel() int32 { return 100 }

func (c *NewCycle) Handle(ctx context.Context, _ model.PlayerID, _ []string) (string, error) {
	c.eng.NewCycle(ctx)
	return "New cycle started: all skill trees wiped", nil
}

// ResetPlayer handles //resetplayer <player>.
type ResetPlayer struct{ eng Engine }

func NewResetPlayer(eng Engine) *ResetPlayer { return &ResetPlayer{eng: eng} }

func (c *ResetPlayer) Names() []string           { return []string{"resetplayer", "reset_player"} }
func (c *ResetPlayer) Usage() string             { return "//resetplayer <player>" }
func (c *ResetPlayer) RequiredAccessLevel() int32 { return 100 }

func (c *ResetPlayer) Handle(ctx context.Context, _ model.PlayerID, args []string) (string, error) {
	if len(args) < 2 {
		return "", usageError(c)
	}
	target := model.PlayerID(args[1])
	refund, err := c.eng.ResetPlayer(ctx, target)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Reset %s: %d points refunded, cooldowns cleared", target, refund), nil
}

// Inspect handles //inspect <player> — full snapshot line for staff.
type Inspect struct{ eng Engine }

func NewInspect(eng Engine) *Inspect { return &Inspect{eng: eng} }

func (c *Inspect) Names() []string           { return []string{"inspect", "info"} }
func (c *Inspect) Usage() string             { return "//inspect <player>" }
func (c *Inspect) RequiredAccessLevel() int32 { return 1 }

func (c *Inspect) Handle(ctx context.Context, _ model.PlayerID, args []string) (string, error) {
	if len(args) < 2 {
		return "", usageError(c)
	}
	target := model.PlayerID(args[1])
	snap := c.eng.Snapshot(ctx, target)

	skills := make([]string, 0, len(snap.Unlocked))
	for _, id := range snap.Unlocked {
		skills = append(skills, string(id))
	}
	cds := make([]string, 0, len(snap.Cooldowns))
	for _, cd := range snap.Cooldowns {
		cds = append(cds, fmt.Sprintf("%s=%ds", cd.Ability, cd.RemainingSeconds))
	}

	return fmt.Sprintf("%s: points %d/%d spent %d, skills [%s], cooldowns [%s], %s",
		target, snap.PointsAvailable, snap.MaxBudget, snap.PointsSpent,
		strings.Join(skills, " "), strings.Join(cds, " "), formatXP(snap.XP)), nil
}
