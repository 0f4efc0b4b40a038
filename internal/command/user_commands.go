package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/udisondev/survivalskills/internal/engine"
	"github.com/udisondev/survivalskills/internal/game/cooldown"
	"github.com/udisondev/survivalskills/internal/game/progression"
	"github.com/udisondev/survivalskills/internal/model"
)

// Skills handles /skills [tree] — points summary, or one tree's catalog with status marks.
type Skills struct{ eng Engine }

func NewSkills(eng Engine) *Skills { return &Skills{eng: eng} }

func (c *Skills) Names() []string { return []string{"skills", "sk"} }
func (c *Skills) Usage() string   { return "/skills [tree]" }

func (c *Skills) Handle(ctx context.Context, caller model.PlayerID, args []string) (string, error) {
	snap := c.eng.Snapshot(ctx, caller)

	if len(args) < 2 {
		var b strings.Builder
		fmt.Fprintf(&b, "Points: %d available, %d/%d spent, ultimates %d/%d",
			snap.PointsAvailable, snap.PointsSpent, snap.MaxBudget, snap.UltimateCount, snap.MaxUltimates)
		for _, tv := range snap.Trees {
			fmt.Fprintf(&b, "\n%s (%d):", tv.Tree, tv.Spent)
			for _, sv := range tv.Slots {
				name := "-"
				if sv.Skill != "" {
					name = sv.Name
				}
				fmt.Fprintf(&b, " %s=%s", sv.Tier, name)
			}
		}
		return b.String(), nil
	}

	tree, err := model.ParseTree(args[1])
	if err != nil {
		return "", err
	}

	unlocked := make(map[model.SkillID]bool, len(snap.Unlocked))
	for _, id := range snap.Unlocked {
		unlocked[id] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s tree, %d points available", tree, snap.PointsAvailable)
	for _, d := range c.eng.Catalog().Tree(tree) {
		mark := "[ ]"
		switch {
		case unlocked[d.ID]:
			mark = "[x]"
		case c.eng.CanUnlock(ctx, caller, d.ID) == nil:
			mark = "[+]"
		}
		fmt.Fprintf(&b, "\n%s %s %s (%s, %d) %s", mark, d.Tier, d.ID, d.Name, d.Cost, d.Kind)
	}
	return b.String(), nil
}

// Unlock handles /unlock <skill>.
type Unlock struct{ eng Engine }

func NewUnlock(eng Engine) *Unlock { return &Unlock{eng: eng} }

func (c *Unlock) Names() []string { return []string{"unlock", "learn"} }
func (c *Unlock) Usage() string   { return "/unlock <skill>" }

func (c *Unlock) Handle(ctx context.Context, caller model.PlayerID, args []string) (string, error) {
	if len(args) < 2 {
		return "", usageError(c)
	}
	skill := model.SkillID(strings.ToLower(args[1]))

	if err := c.eng.Unlock(ctx, caller, skill); err != nil {
		return "", unlockMessage(err)
	}

	d, _ := c.eng.Catalog().Skill(skill)
	snap := c.eng.Snapshot(ctx, caller)
	return fmt.Sprintf("Unlocked %s (%s %s). %d points left.", d.Name, d.Tree, d.Tier, snap.PointsAvailable), nil
}

// errUnavailable is shown while the player's stored progression cannot be read.
var errUnavailable = errors.New("skills are temporarily unavailable, try again shortly")

// unlockMessage turns validator rejections into player-facing text.
func unlockMessage(err error) error {
	if errors.Is(err, progression.ErrUnavailable) {
		return errUnavailable
	}
	var ve *progression.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	switch ve.Reason {
	case progression.ReasonInsufficientPoints:
		return fmt.Errorf("not enough points: need %d, have %d", ve.Need, ve.Have)
	case progression.ReasonMissingPrerequisite:
		prev, _ := ve.Tier.Prev()
		return fmt.Errorf("unlock a %s %s skill first", ve.Tree, prev)
	case progression.ReasonSlotOccupied:
		return fmt.Errorf("the %s %s slot is already taken by %s", ve.Tree, ve.Tier, ve.Skill)
	case progression.ReasonMaxUltimates:
		return fmt.Errorf("you already have %d ultimates", ve.Have)
	case progression.ReasonBudgetExceeded:
		return fmt.Errorf("that would exceed the %d point budget", ve.Have)
	case progression.ReasonUnknownSkill:
		return fmt.Errorf("no skill named %q", ve.Skill)
	default:
		return err
	}
}

// Respec handles /respec <tree|all>.
type Respec struct{ eng Engine }

func NewRespec(eng Engine) *Respec { return &Respec{eng: eng} }

func (c *Respec) Names() []string { return []string{"respec", "reset"} }
func (c *Respec) Usage() string   { return "/respec <tree|all>" }

func (c *Respec) Handle(ctx context.Context, caller model.PlayerID, args []string) (string, error) {
	if len(args) < 2 {
		return "", usageError(c)
	}

	if strings.EqualFold(args[1], "all") {
		refund, err := c.eng.ResetAll(ctx, caller)
		if err != nil {
			return "", unlockMessage(err)
		}
		return fmt.Sprintf("All trees reset, %d points refunded.", refund), nil
	}

	tree, err := model.ParseTree(args[1])
	if err != nil {
		return "", err
	}
	refund, err := c.eng.ResetTree(ctx, caller, tree)
	if err != nil {
		return "", unlockMessage(err)
	}
	return fmt.Sprintf("%s tree reset, %d points refunded.", tree, refund), nil
}

// XP handles /xp.
type XP struct{ eng Engine }

func NewXP(eng Engine) *XP { return &XP{eng: eng} }

func (c *XP) Names() []string { return []string{"xp", "exp"} }
func (c *XP) Usage() string   { return "/xp" }

func (c *XP) Handle(ctx context.Context, caller model.PlayerID, _ []string) (string, error) {
	x := c.eng.Snapshot(ctx, caller).XP
	return formatXP(x), nil
}

func formatXP(x engine.XPView) string {
	return fmt.Sprintf("XP %d/%d (%.1f%%), total %d, rate x%.2f",
		x.Current, x.Threshold, x.Percent, x.Total, x.Multiplier)
}

// Activate handles /activate <skill>.
type Activate struct{ eng Engine }

func NewActivate(eng Engine) *Activate { return &Activate{eng: eng} }

func (c *Activate) Names() []string { return []string{"activate", "use"} }
func (c *Activate) Usage() string   { return "/activate <skill>" }

func (c *Activate) Handle(ctx context.Context, caller model.PlayerID, args []string) (string, error) {
	if len(args) < 2 {
		return "", usageError(c)
	}
	skill := model.SkillID(strings.ToLower(args[1]))

	res, err := c.eng.ActivateSkill(ctx, caller, skill)
	switch {
	case errors.Is(err, engine.ErrNotUnlocked):
		return "", fmt.Errorf("you have not unlocked %s", skill)
	case errors.Is(err, engine.ErrNotActivatable):
		return "", fmt.Errorf("%s is passive", skill)
	case err != nil:
		return "", unlockMessage(err)
	}

	d, _ := c.eng.Catalog().Skill(skill)
	switch res.Status {
	case cooldown.Unavailable:
		return "", errUnavailable
	case cooldown.OnCooldown:
		return fmt.Sprintf("%s is on cooldown: %ds left.", d.Name, res.RemainingSeconds()), nil
	}
	return fmt.Sprintf("%s activated.", d.Name), nil
}

// Help handles /help.
type Help struct{ h *Handler }

func (c *Help) Names() []string { return []string{"help", "commands"} }
func (c *Help) Usage() string   { return "/help" }

func (c *Help) Handle(_ context.Context, caller model.PlayerID, _ []string) (string, error) {
	return strings.Join(c.h.Help(caller), "\n"), nil
}
