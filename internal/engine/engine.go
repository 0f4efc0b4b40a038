// Package engine is the single entry point gameplay code talks to.
//
// It owns one instance of every progression component, routes XP into
// points, resolves capabilities for the effect composer and notifies
// listeners after each player mutation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/survivalskills/internal/clock"
	"github.com/udisondev/survivalskills/internal/data"
	"github.com/udisondev/survivalskills/internal/game/cooldown"
	"github.com/udisondev/survivalskills/internal/game/effect"
	"github.com/udisondev/survivalskills/internal/game/progression"
	"github.com/udisondev/survivalskills/internal/game/stacks"
	"github.com/udisondev/survivalskills/internal/game/xp"
	"github.com/udisondev/survivalskills/internal/model"
)

var (
	// ErrNotUnlocked: the player does not own the skill.
	ErrNotUnlocked = errors.New("skill not unlocked")
	// ErrNotActivatable: the skill is passive.
	ErrNotActivatable = errors.New("skill is passive")
)

// Notifier is told which player changed. Implementations must not block.
type Notifier interface {
	Notify(id model.PlayerID)
}

// Stores groups the durable sides of the components. Any may be nil (memory only).
type Stores struct {
	Progression progression.Store
	XP          xp.Store
	Cooldowns   cooldown.Store
}

// Options configure an Engine. Zero values fall back to component defaults.
type Options struct {
	Rules        progression.Rules
	XPThreshold  int64
	Stacks       stacks.Options
	Composer     effect.Config
	Clock        clock.Clock
	StoreTimeout time.Duration

	FlushInterval           time.Duration
	CooldownCleanupInterval time.Duration
	StackEvictInterval      time.Duration
	// IdleRelease drops players from memory after this long without activity.
	// Zero disables the sweep.
	IdleRelease time.Duration
}

// Engine wires the progression components together.
type Engine struct {
	catalog     *data.Catalog
	progression *progression.Manager
	xp          *xp.Converter
	stacks      *stacks.Tracker
	cooldowns   *cooldown.Registry
	composer    *effect.Composer
	notifier    Notifier
	clock       clock.Clock

	flushEvery   time.Duration
	cleanupEvery time.Duration
	idleAfter    time.Duration

	seenMu sync.Mutex
	seen   map[model.PlayerID]time.Time
}

// New creates an Engine over the catalog and stores.
func New(catalog *data.Catalog, stores Stores, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Composer == (effect.Config{}) {
		opts.Composer = effect.DefaultConfig()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 2 * time.Second
	}
	if opts.Stacks.Clock == nil {
		opts.Stacks.Clock = opts.Clock
	}
	if opts.StackEvictInterval > 0 {
		opts.Stacks.EvictInterval = opts.StackEvictInterval
	}

	e := &Engine{
		catalog:      catalog,
		notifier:     nopNotifier{},
		clock:        opts.Clock,
		flushEvery:   opts.FlushInterval,
		cleanupEvery: opts.CooldownCleanupInterval,
		idleAfter:    opts.IdleRelease,
		seen:         make(map[model.PlayerID]time.Time, 64),
	}

	e.progression = progression.NewManager(catalog, stores.Progression, progression.Options{
		Rules:        opts.Rules,
		Clock:        opts.Clock,
		StoreTimeout: opts.StoreTimeout,
	})
	e.xp = xp.NewConverter(e.progression, stores.XP, xp.Options{
		Threshold:    opts.XPThreshold,
		StoreTimeout: opts.StoreTimeout,
	})
	e.stacks = stacks.NewTracker(opts.Stacks)
	e.cooldowns = cooldown.NewRegistry(stores.Cooldowns, cooldown.Options{
		Clock:        opts.Clock,
		StoreTimeout: opts.StoreTimeout,
	})
	e.composer = effect.NewComposer(opts.Composer, e.stacks)

	return e
}

// SetNotifier installs the change listener. nil disables notifications.
// Must be called before the engine is shared between goroutines.
func (e *Engine) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	e.notifier = n
}

// Catalog returns the skill catalog.
func (e *Engine) Catalog() *data.Catalog {
	return e.catalog
}

// Rules returns the progression limits in force.
func (e *Engine) Rules() progression.Rules {
	return e.progression.Rules()
}

// --- capability & effects ---

// HasSkill reports whether the player has the skill unlocked.
func (e *Engine) HasSkill(ctx context.Context, id model.PlayerID, skill model.SkillID) bool {
	e.touch(id)
	return e.progression.HasSkill(ctx, id, skill)
}

// Capabilities folds the player's unlocked skills into an effect capability set.
func (e *Engine) Capabilities(ctx context.Context, id model.PlayerID) effect.Capabilities {
	e.touch(id)
	return effect.CapabilitiesOf(e.progression.Unlocked(ctx, id))
}

// ComputeDamage runs the damage pipeline for an outgoing hit.
func (e *Engine) ComputeDamage(ctx context.Context, attacker model.PlayerID, target model.EntityID, base, healthRatio float64, rng effect.Rand) effect.DamageResult {
	return e.composer.Damage(effect.DamageInput{
		Attacker:    model.EntityID(attacker),
		Target:      target,
		Base:        base,
		HealthRatio: healthRatio,
		Caps:        e.Capabilities(ctx, attacker),
		Rand:        rng,
	})
}

// ComputeGatherYield scales a gathered amount. Returns the amount and whether it doubled.
func (e *Engine) ComputeGatherYield(ctx context.Context, id model.PlayerID, base int64, rng effect.Rand) (int64, bool) {
	return e.composer.GatherYield(e.Capabilities(ctx, id), base, rng)
}

// RollRareFind rolls the player's rare-drop chance.
func (e *Engine) RollRareFind(ctx context.Context, id model.PlayerID, rng effect.Rand) bool {
	return e.composer.RareFind(e.Capabilities(ctx, id), rng)
}

// MitigateDamage reduces incoming damage by the player's damage reduction.
func (e *Engine) MitigateDamage(ctx context.Context, id model.PlayerID, incoming float64) float64 {
	return e.composer.Mitigate(e.Capabilities(ctx, id), incoming)
}

// TeamAura returns the damage bonus the player grants nearby allies.
func (e *Engine) TeamAura(ctx context.Context, id model.PlayerID) float64 {
	return e.composer.TeamAura(e.Capabilities(ctx, id))
}

// HealAmount scales healing done by the player.
func (e *Engine) HealAmount(ctx context.Context, id model.PlayerID, amount float64) float64 {
	return e.composer.Heal(e.Capabilities(ctx, id), amount)
}

// HungerDrain scales the player's hunger loss.
func (e *Engine) HungerDrain(ctx context.Context, id model.PlayerID, drain float64) float64 {
	return e.composer.HungerDrain(e.Capabilities(ctx, id), drain)
}

// ReviveDuration returns how long the player takes to revive an ally.
func (e *Engine) ReviveDuration(ctx context.Context, id model.PlayerID, base time.Duration) time.Duration {
	return e.composer.ReviveDuration(e.Capabilities(ctx, id), base)
}

// AttackInterval returns the player's time between attacks.
func (e *Engine) AttackInterval(ctx context.Context, id model.PlayerID, base time.Duration) time.Duration {
	return e.composer.AttackInterval(e.Capabilities(ctx, id), base)
}

// Regen returns the player's health regeneration per second (fraction of max).
func (e *Engine) Regen(ctx context.Context, id model.PlayerID) float64 {
	return e.composer.Regen(e.Capabilities(ctx, id))
}

// Composer exposes the composer for transforms without an engine shortcut.
func (e *Engine) Composer() *effect.Composer {
	return e.composer
}

// PeekStacks returns the attacker's current stack on target (display).
func (e *Engine) PeekStacks(attacker model.PlayerID, target model.EntityID) int {
	return e.stacks.Peek(model.EntityID(attacker), target)
}

// --- xp ---

// AddXP credits experience and converts it into points.
func (e *Engine) AddXP(ctx context.Context, id model.PlayerID, amount int64, multipliers ...float64) int32 {
	e.touch(id)
	points := e.xp.AddXP(ctx, id, amount, multipliers...)
	if amount > 0 {
		e.notifier.Notify(id)
	}
	return points
}

// SetXPMultiplier sets the player's personal XP rate.
func (e *Engine) SetXPMultiplier(ctx context.Context, id model.PlayerID, m float64) error {
	e.touch(id)
	if err := e.xp.SetMultiplier(ctx, id, m); err != nil {
		return err
	}
	e.notifier.Notify(id)
	return nil
}

// --- cooldowns ---

// TryActivate passes the ability gate or reports the time left.
// Status is cooldown.Unavailable while the player's gates cannot be read.
func (e *Engine) TryActivate(ctx context.Context, id model.PlayerID, ability string, durationSeconds int64) cooldown.Result {
	e.touch(id)
	res := e.cooldowns.TryActivate(ctx, id, ability, durationSeconds)
	if res.Activated() && durationSeconds > 0 {
		e.notifier.Notify(id)
	}
	return res
}

// ClearCooldown refunds an activation whose gameplay precondition failed.
func (e *Engine) ClearCooldown(ctx context.Context, id model.PlayerID, ability string) {
	e.touch(id)
	e.cooldowns.Clear(ctx, id, ability)
	e.notifier.Notify(id)
}

// ActivateSkill gates an unlocked active skill with its catalog cooldown.
func (e *Engine) ActivateSkill(ctx context.Context, id model.PlayerID, skill model.SkillID) (cooldown.Result, error) {
	d, ok := e.catalog.Skill(skill)
	if !ok {
		return cooldown.Result{}, &progression.ValidationError{Reason: progression.ReasonUnknownSkill, Skill: skill}
	}
	if !d.Kind.IsActivatable() {
		return cooldown.Result{}, fmt.Errorf("activate %s: %w", skill, ErrNotActivatable)
	}
	if !e.HasSkill(ctx, id, skill) {
		return cooldown.Result{}, fmt.Errorf("activate %s: %w", skill, ErrNotUnlocked)
	}
	return e.TryActivate(ctx, id, string(skill), d.Cooldown), nil
}

// --- progression ---

// Unlock validates and unlocks a skill.
func (e *Engine) Unlock(ctx context.Context, id model.PlayerID, skill model.SkillID) error {
	e.touch(id)
	if err := e.progression.Unlock(ctx, id, skill); err != nil {
		return err
	}
	e.notifier.Notify(id)
	return nil
}

// CanUnlock reports why a skill could not be unlocked right now, nil if it could.
func (e *Engine) CanUnlock(ctx context.Context, id model.PlayerID, skill model.SkillID) error {
	e.touch(id)
	return e.progression.CanUnlock(ctx, id, skill)
}

// ForceUnlock unlocks a skill without the points and budget checks (admin).
func (e *Engine) ForceUnlock(ctx context.Context, id model.PlayerID, skill model.SkillID) error {
	e.touch(id)
	if err := e.progression.ForceUnlock(ctx, id, skill); err != nil {
		return err
	}
	e.notifier.Notify(id)
	return nil
}

// ResetTree refunds one tree.
func (e *Engine) ResetTree(ctx context.Context, id model.PlayerID, tree model.Tree) (int32, error) {
	e.touch(id)
	refund, err := e.progression.ResetTree(ctx, id, tree)
	if err != nil {
		return 0, err
	}
	e.notifier.Notify(id)
	return refund, nil
}

// ResetAll refunds every tree.
func (e *Engine) ResetAll(ctx context.Context, id model.PlayerID) (int32, error) {
	e.touch(id)
	refund, err := e.progression.ResetAll(ctx, id)
	if err != nil {
		return 0, err
	}
	e.notifier.Notify(id)
	return refund, nil
}

// GrantPoints adds spendable points (admin, quest rewards).
func (e *Engine) GrantPoints(ctx context.Context, id model.PlayerID, n int32) {
	if n <= 0 {
		return
	}
	e.touch(id)
	e.progression.GrantPoints(ctx, id, n)
	e.notifier.Notify(id)
}

// ResetPlayer refunds every tree, clears all cooldowns and drops stacks.
// XP is kept. Returns the refunded points. Nothing is cleared when the
// progression cannot be read.
func (e *Engine) ResetPlayer(ctx context.Context, id model.PlayerID) (int32, error) {
	e.touch(id)
	refund, err := e.progression.ResetAll(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("reset player: %w", err)
	}
	e.cooldowns.ClearAll(ctx, id)
	e.stacks.ForgetActor(model.EntityID(id))
	e.notifier.Notify(id)
	slog.Info("player reset", "player", id, "refund", refund)
	return refund, nil
}

// NewCycle empties every progression without refund. XP and cooldowns are kept;
// stacks of players in memory are dropped.
func (e *Engine) NewCycle(ctx context.Context) {
	e.progression.NewCycle(ctx)
	for _, id := range e.progression.Players() {
		e.stacks.ForgetActor(model.EntityID(id))
		e.notifier.Notify(id)
	}
}

// --- lifecycle ---

// Flush retries every pending durable write. Returns the number still pending.
func (e *Engine) Flush(ctx context.Context) int {
	return e.progression.Flush(ctx) + e.xp.Flush(ctx) + e.cooldowns.Flush(ctx)
}

// Release drops a disconnected player from memory once persisted.
// Components that still hold pending writes keep the player.
func (e *Engine) Release(ctx context.Context, id model.PlayerID) error {
	e.stacks.ForgetActor(model.EntityID(id))
	return errors.Join(
		e.progression.Release(ctx, id),
		e.xp.Release(ctx, id),
		e.cooldowns.Release(ctx, id),
	)
}

type nopNotifier struct{}

func (nopNotifier) Notify(model.PlayerID) {}
