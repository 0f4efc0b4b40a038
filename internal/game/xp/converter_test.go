package xp

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/survivalskills/internal/model"
)

type grantRecorder struct {
	mu    sync.Mutex
	calls map[model.PlayerID][]int32
}

func newGrantRecorder() *grantRecorder {
	return &grantRecorder{calls: make(map[model.PlayerID][]int32)}
}

func (g *grantRecorder) GrantPoints(_ context.Context, id model.PlayerID, n int32) {
	g.mu.Lock()
	g.calls[id] = append(g.calls[id], n)
	g.mu.Unlock()
}

func (g *grantRecorder) total(id model.PlayerID) int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var sum int32
	for _, n := range g.calls[id] {
		sum += n
	}
	return sum
}

type memStore struct {
	mu       sync.Mutex
	rows     map[model.PlayerID]model.XPState
	failSave bool
	failLoad bool
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[model.PlayerID]model.XPState)}
}

func (s *memStore) LoadXP(_ context.Context, id model.PlayerID) (*model.XPState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLoad {
		return nil, errors.New("load down")
	}
	row, ok := s.rows[id]
	if !ok {
		return model.NewXPState(id), nil
	}
	return &row, nil
}

func (s *memStore) SaveXP(_ context.Context, st *model.XPState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("save down")
	}
	s.rows[st.PlayerID] = *st
	return nil
}

func (s *memStore) setFailSave(v bool) {
	s.mu.Lock()
	s.failSave = v
	s.mu.Unlock()
}

func (s *memStore) row(id model.PlayerID) (model.XPState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	return r, ok
}

func newTestConverter(t *testing.T) (*Converter, *grantRecorder, *memStore) {
	t.Helper()
	g := newGrantRecorder()
	s := newMemStore()
	return NewConverter(g, s, Options{}), g, s
}

func TestAddXP_ExactThreshold(t *testing.T) {
	c, g, _ := newTestConverter(t)
	ctx := context.Background()

	assert.Equal(t, int32(1), c.AddXP(ctx, "p1", 500))

	st := c.State(ctx, "p1")
	assert.Equal(t, int64(0), st.CurrentXP)
	assert.Equal(t, int64(500), st.TotalXP)
	assert.Equal(t, int32(1), g.total("p1"))
}

func TestAddXP_MultiplePoints(t *testing.T) {
	c, g, _ := newTestConverter(t)
	ctx := context.Background()

	assert.Equal(t, int32(2), c.AddXP(ctx, "p1", 1250))

	st := c.State(ctx, "p1")
	assert.Equal(t, int64(250), st.CurrentXP)
	assert.Equal(t, int64(1250), st.TotalXP)
	assert.Equal(t, []int32{1, 1}, g.calls["p1"], "one grant per point")
}

func TestAddXP_SmallIncrementsCarry(t *testing.T) {
	c, g, _ := newTestConverter(t)
	ctx := context.Background()

	var points int32
	for range 1000 {
		points += c.AddXP(ctx, "p1", 7)
	}

	// 7000 / 500 = 14 points, remainder 0.
	assert.Equal(t, int32(14), points)
	assert.Equal(t, int64(0), c.State(ctx, "p1").CurrentXP)
	assert.Equal(t, int32(14), g.total("p1"))

	c.AddXP(ctx, "p1", 499)
	assert.Equal(t, int64(499), c.State(ctx, "p1").CurrentXP)
	assert.Equal(t, int32(1), c.AddXP(ctx, "p1", 1))
}

func TestAddXP_Multipliers(t *testing.T) {
	tests := []struct {
		name    string
		base    int64
		sources []float64
		rate    float64
		want    int64
	}{
		{"no sources", 120, nil, 1.0, 120},
		{"floor", 333, []float64{1.5}, 1.0, 499},
		{"product", 100, []float64{2, 2.5}, 1.0, 500},
		{"personal rate", 100, []float64{2}, 1.5, 300},
		{"zero source", 100, []float64{2, 0}, 1.0, 0},
		{"negative source", 100, []float64{-1}, 1.0, 0},
		{"floors to zero", 1, []float64{0.5}, 1.0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestConverter(t)
			ctx := context.Background()
			require.NoError(t, c.SetMultiplier(ctx, "p1", tt.rate))

			c.AddXP(ctx, "p1", tt.base, tt.sources...)

			assert.Equal(t, tt.want, c.State(ctx, "p1").TotalXP)
		})
	}
}

func TestAddXP_NonPositiveBase(t *testing.T) {
	c, g, _ := newTestConverter(t)
	ctx := context.Background()

	assert.Zero(t, c.AddXP(ctx, "p1", 0))
	assert.Zero(t, c.AddXP(ctx, "p1", -500))
	assert.Zero(t, c.State(ctx, "p1").TotalXP)
	assert.Zero(t, g.total("p1"))
}

func TestSetMultiplier_Invalid(t *testing.T) {
	c, _, _ := newTestConverter(t)
	ctx := context.Background()

	assert.Error(t, c.SetMultiplier(ctx, "p1", 0))
	assert.Error(t, c.SetMultiplier(ctx, "p1", -2))
	assert.Equal(t, 1.0, c.State(ctx, "p1").Multiplier)
}

func TestProgress(t *testing.T) {
	c, _, _ := newTestConverter(t)
	ctx := context.Background()

	c.AddXP(ctx, "p1", 125)
	assert.InDelta(t, 25.0, c.Progress(ctx, "p1"), 1e-9)
}

func TestCustomThreshold(t *testing.T) {
	g := newGrantRecorder()
	c := NewConverter(g, nil, Options{Threshold: 100})

	assert.Equal(t, int32(3), c.AddXP(context.Background(), "p1", 350))
	assert.Equal(t, int64(50), c.State(context.Background(), "p1").CurrentXP)
}

func TestPersistence_WriteThroughAndRetry(t *testing.T) {
	c, _, s := newTestConverter(t)
	ctx := context.Background()

	c.AddXP(ctx, "p1", 100)
	row, ok := s.row("p1")
	require.True(t, ok)
	assert.Equal(t, int64(100), row.CurrentXP)

	s.setFailSave(true)
	c.AddXP(ctx, "p1", 100)
	row, _ = s.row("p1")
	assert.Equal(t, int64(100), row.CurrentXP, "failed write not visible")
	assert.Equal(t, 1, c.Flush(ctx))

	s.setFailSave(false)
	assert.Equal(t, 0, c.Flush(ctx))
	row, _ = s.row("p1")
	assert.Equal(t, int64(200), row.CurrentXP)
}

func TestPersistence_LoadsAndRepairs(t *testing.T) {
	c, _, s := newTestConverter(t)
	s.rows["p1"] = model.XPState{PlayerID: "p1", TotalXP: 9000, CurrentXP: 450, Multiplier: 0}

	assert.Equal(t, int32(1), c.AddXP(context.Background(), "p1", 50))

	st := c.State(context.Background(), "p1")
	assert.Equal(t, 1.0, st.Multiplier)
	assert.Equal(t, int64(9050), st.TotalXP)
}

func TestRelease(t *testing.T) {
	c, _, s := newTestConverter(t)
	ctx := context.Background()
	c.AddXP(ctx, "p1", 10)

	s.setFailSave(true)
	c.AddXP(ctx, "p1", 10)
	assert.Error(t, c.Release(ctx, "p1"))

	s.setFailSave(false)
	require.NoError(t, c.Release(ctx, "p1"))
	assert.Equal(t, int64(20), c.State(ctx, "p1").CurrentXP)
}

func TestAddXP_Concurrent(t *testing.T) {
	c, g, _ := newTestConverter(t)
	ctx := context.Background()

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range 10 {
				c.AddXP(ctx, "p1", 60)
			}
		}()
	}
	wg.Wait()

	// 50 × 10 × 60 = 30000 XP = 60 points.
	assert.Equal(t, int32(60), g.total("p1"))
	assert.Equal(t, int64(30000), c.State(ctx, "p1").TotalXP)
	assert.Zero(t, c.State(ctx, "p1").CurrentXP)
}

func (s *memStore) setFailLoad(v bool) {
	s.mu.Lock()
	s.failLoad = v
	s.mu.Unlock()
}

func TestLoadFailure_StoredStateNeverOverwritten(t *testing.T) {
	c, g, s := newTestConverter(t)
	ctx := context.Background()
	stored := model.XPState{PlayerID: "p1", TotalXP: 90000, CurrentXP: 400, Multiplier: 2}
	s.rows["p1"] = stored

	s.setFailLoad(true)
	assert.Equal(t, int32(0), c.AddXP(ctx, "p1", 60), "points unknown until the state loads")
	assert.ErrorIs(t, c.SetMultiplier(ctx, "p1", 3), ErrUnavailable)

	row, _ := s.row("p1")
	assert.Equal(t, stored, row, "defaults are not written over the stored state")
	assert.Equal(t, 1, c.Flush(ctx))
	assert.Error(t, c.Release(ctx, "p1"))
	assert.Zero(t, g.total("p1"))

	s.setFailLoad(false)
	assert.Equal(t, 0, c.Flush(ctx))

	// 60 × 2 = 120 на 400 сверху: один поинт, 20 в остатке.
	row, _ = s.row("p1")
	assert.Equal(t, int64(90120), row.TotalXP)
	assert.Equal(t, int64(20), row.CurrentXP)
	assert.Equal(t, 2.0, row.Multiplier)
	assert.Equal(t, int32(1), g.total("p1"))
}

func TestLoadFailure_QueuedGrantReplayedOnNextAddXP(t *testing.T) {
	c, g, s := newTestConverter(t)
	ctx := context.Background()
	s.rows["p1"] = model.XPState{PlayerID: "p1", TotalXP: 1000, CurrentXP: 300, Multiplier: 1}

	s.setFailLoad(true)
	c.AddXP(ctx, "p1", 100)
	s.setFailLoad(false)

	assert.Equal(t, int32(1), c.AddXP(ctx, "p1", 100), "only the current call's points are returned")

	st := c.State(ctx, "p1")
	assert.Equal(t, int64(1200), st.TotalXP)
	assert.Equal(t, int64(0), st.CurrentXP)
	assert.Equal(t, int32(1), g.total("p1"))
}
