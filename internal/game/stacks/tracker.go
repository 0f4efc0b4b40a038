// Package stacks tracks time-windowed consecutive-hit bonuses.
//
// An (actor, target) stack grows by one per qualifying hit up to MaxStacks and
// is considered zero once Window has passed since the last hit. State is
// ephemeral: losing it on restart only costs players their current streak.
package stacks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/survivalskills/internal/clock"
	"github.com/udisondev/survivalskills/internal/model"
)

// Defaults.
const (
	DefaultWindow        = 5 * time.Second
	DefaultMaxStacks     = 3
	DefaultPerStackBonus = 0.05
	DefaultEvictInterval = 30 * time.Second
)

// Options configure a Tracker. Zero values fall back to defaults.
type Options struct {
	Window        time.Duration
	MaxStacks     int
	PerStackBonus float64
	EvictInterval time.Duration
	Clock         clock.Clock
}

type stack struct {
	count   int
	lastHit time.Time
}

// bucket holds every stack of one actor.
type bucket struct {
	mu      sync.Mutex
	targets map[model.EntityID]stack
	dead    bool // removed from the tracker map; writers must re-fetch
}

// Tracker is safe for concurrent use. Different actors never contend.
type Tracker struct {
	window   time.Duration
	max      int
	bonus    float64
	interval time.Duration
	clock    clock.Clock

	mu      sync.RWMutex
	buckets map[model.EntityID]*bucket

	stopCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewTracker creates a Tracker. Start (or Run) enables periodic eviction;
// without it stale entries are only dropped on the next hit.
func NewTracker(opts Options) *Tracker {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.MaxStacks <= 0 {
		opts.MaxStacks = DefaultMaxStacks
	}
	if opts.PerStackBonus < 0 {
		opts.PerStackBonus = 0
	}
	if opts.EvictInterval <= 0 {
		opts.EvictInterval = DefaultEvictInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Tracker{
		window:   opts.Window,
		max:      opts.MaxStacks,
		bonus:    opts.PerStackBonus,
		interval: opts.EvictInterval,
		clock:    opts.Clock,
		buckets:  make(map[model.EntityID]*bucket, 64),
		stopCh:   make(chan struct{}),
	}
}

// Multiplier returns 1 + stacks × bonus.
func (t *Tracker) Multiplier(stacks int) float64 {
	return 1 + float64(stacks)*t.bonus
}

// Hit records a qualifying hit and returns the new stack count (1..MaxStacks).
func (t *Tracker) Hit(actor, target model.EntityID) int {
	now := t.clock.Now()

	var b *bucket
	for {
		b = t.bucket(actor, true)
		b.mu.Lock()
		if !b.dead {
			break
		}
		b.mu.Unlock()
	}
	defer b.mu.Unlock()

	s, ok := b.targets[target]
	if !ok || t.stale(s, now) {
		s.count = 1
	} else {
		s.count = min(s.count+1, t.max)
	}
	s.lastHit = now
	b.targets[target] = s
	return s.count
}

// ApplyHit records a hit and returns base × (1 + stacks × bonus).
func (t *Tracker) ApplyHit(actor, target model.EntityID, base float64) float64 {
	return base * t.Multiplier(t.Hit(actor, target))
}

// Peek returns the current stack count without mutating state. Stale ⇒ 0.
func (t *Tracker) Peek(actor, target model.EntityID) int {
	b := t.bucket(actor, false)
	if b == nil {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.targets[target]
	if !ok || t.stale(s, t.clock.Now()) {
		return 0
	}
	return s.count
}

// ForgetActor drops every stack the actor holds.
func (t *Tracker) ForgetActor(actor model.EntityID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if b, ok := t.buckets[actor]; ok {
		b.mu.Lock()
		b.dead = true
		b.mu.Unlock()
		delete(t.buckets, actor)
	}
}

// ForgetTarget drops every stack against target (e.g. target died).
func (t *Tracker) ForgetTarget(target model.EntityID) {
	for _, b := range t.snapshot() {
		b.mu.Lock()
		delete(b.targets, target)
		b.mu.Unlock()
	}
}

// Len returns the number of live (actor, target) entries, stale ones included.
func (t *Tracker) Len() int {
	var n int
	for _, b := range t.snapshot() {
		b.mu.Lock()
		n += len(b.targets)
		b.mu.Unlock()
	}
	return n
}

// Evict removes stale entries and empty actor buckets. Returns entries removed.
func (t *Tracker) Evict() int {
	now := t.clock.Now()

	var removed int
	for _, b := range t.snapshot() {
		b.mu.Lock()
		for target, s := range b.targets {
			if t.stale(s, now) {
				delete(b.targets, target)
				removed++
			}
		}
		b.mu.Unlock()
	}

	// Пустые бакеты удаляем под write-lock, перепроверяя размер.
	t.mu.Lock()
	for actor, b := range t.buckets {
		b.mu.Lock()
		if len(b.targets) == 0 {
			b.dead = true
			delete(t.buckets, actor)
		}
		b.mu.Unlock()
	}
	t.mu.Unlock()

	return removed
}

// Start launches the eviction goroutine once. Stop must be called to release it.
func (t *Tracker) Start() {
	t.startOnce.Do(func() {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.loop()
		}()
	})
}

// Stop terminates the goroutine started by Start and waits for it.
// Safe to call more than once or without Start.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.wg.Wait()
}

// Run evicts on every interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	t.Start()
	<-ctx.Done()
	t.Stop()
	return nil
}

func (t *Tracker) loop() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := t.Evict(); n > 0 {
				slog.Debug("stacks evicted", "count", n)
			}
		case <-t.stopCh:
			return
		}
	}
}

func (t *Tracker) stale(s stack, now time.Time) bool {
	return now.Sub(s.lastHit) > t.window
}

func (t *Tracker) bucket(actor model.EntityID, create bool) *bucket {
	t.mu.RLock()
	b, ok := t.buckets[actor]
	t.mu.RUnlock()
	if ok || !create {
		return b
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.buckets[actor]; ok {
		return b
	}
	b = &bucket{targets: make(map[model.EntityID]stack, 4)}
	t.buckets[actor] = b
	return b
}

func (t *Tracker) snapshot() []*bucket {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*bucket, 0, len(t.buckets))
	for _, b := range t.buckets {
		out = append(out, b)
	}
	return out
}
