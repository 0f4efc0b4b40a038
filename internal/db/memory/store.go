// Package memory is a process-local store for tests and ephemeral servers.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/udisondev/survivalskills/internal/model"
)

type cooldownKey struct {
	player  model.PlayerID
	ability string
}

// Store implements progression, XP and cooldown persistence in maps.
// SetFailure makes every call return the given error until cleared.
type Store struct {
	mu        sync.Mutex
	progress  map[model.PlayerID]model.Progression
	xp        map[model.PlayerID]model.XPState
	cooldowns map[cooldownKey]time.Time
	failure   error
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		progress:  make(map[model.PlayerID]model.Progression),
		xp:        make(map[model.PlayerID]model.XPState),
		cooldowns: make(map[cooldownKey]time.Time),
	}
}

// SetFailure injects err into every subsequent call; nil restores normal operation.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
}

func (s *Store) LoadProgression(_ context.Context, id model.PlayerID) (*model.Progression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	p, ok := s.progress[id]
	if !ok {
		return model.NewProgression(id), nil
	}
	out := p.Clone()
	return &out, nil
}

func (s *Store) SaveProgression(_ context.Context, p *model.Progression) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	s.progress[p.PlayerID] = p.Clone()
	return nil
}

func (s *Store) ResetProgressions(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	for id, p := range s.progress {
		if p.LastReset.Before(at) {
			p.Clear(at)
			s.progress[id] = p
		}
	}
	return nil
}

func (s *Store) LoadXP(_ context.Context, id model.PlayerID) (*model.XPState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	x, ok := s.xp[id]
	if !ok {
		return model.NewXPState(id), nil
	}
	return &x, nil
}

func (s *Store) SaveXP(_ context.Context, x *model.XPState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	s.xp[x.PlayerID] = *x
	return nil
}

func (s *Store) LoadCooldowns(_ context.Context, id model.PlayerID) (map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	out := make(map[string]time.Time)
	for k, v := range s.cooldowns {
		if k.player == id {
			out[k.ability] = v
		}
	}
	return out, nil
}

func (s *Store) SaveCooldown(_ context.Context, id model.PlayerID, ability string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	s.cooldowns[cooldownKey{id, ability}] = expiry
	return nil
}

func (s *Store) DeleteCooldown(_ context.Context, id model.PlayerID, ability string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	delete(s.cooldowns, cooldownKey{id, ability})
	return nil
}

func (s *Store) DeleteExpiredCooldowns(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return 0, s.failure
	}
	var n int64
	for k, v := range s.cooldowns {
		if !v.After(now) {
			delete(s.cooldowns, k)
			n++
		}
	}
	return n, nil
}
