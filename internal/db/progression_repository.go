package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/survivalskills/internal/model"
)

// ProgressionRepository stores PlayerProgression and XPState in player_progression.
// Progression and XP upserts touch disjoint columns of the same row.
type ProgressionRepository struct {
	pool *pgxpool.Pool

	selectSQL string
	upsertSQL string
	resetSQL  string
}

// NewProgressionRepository создаёт repository и собирает SQL по колонкам слотов.
func NewProgressionRepository(pool *pgxpool.Pool) *ProgressionRepository {
	slots := SlotColumns()

	placeholders := make([]string, len(slots))
	updates := make([]string, len(slots))
	nulls := make([]string, len(slots))
	for i, c := range slots {
		placeholders[i] = fmt.Sprintf("$%d", i+6)
		updates[i] = c + " = EXCLUDED." + c
		nulls[i] = c + " = NULL"
	}

	return &ProgressionRepository{
		pool: pool,
		selectSQL: `SELECT points_available, points_spent, ultimate_count, last_reset_time, ` +
			strings.Join(slots, ", ") +
			` FROM player_progression WHERE player_id = $1`,
		upsertSQL: `INSERT INTO player_progression
			(player_id, points_available, points_spent, ultimate_count, last_reset_time, ` + strings.Join(slots, ", ") + `)
			VALUES ($1, $2, $3, $4, $5, ` + strings.Join(placeholders, ", ") + `)
			ON CONFLICT (player_id) DO UPDATE SET
				points_available = EXCLUDED.points_available,
				points_spent = EXCLUDED.points_spent,
				ultimate_count = EXCLUDED.ultimate_count,
				last_reset_time = EXCLUDED.last_reset_time,
				` + strings.Join(updates, ",\n\t\t\t\t") + `,
				updated_at = NOW()`,
		resetSQL: `UPDATE player_progression SET
				points_available = 0, points_spent = 0, ultimate_count = 0, last_reset_time = $1, ` +
			strings.Join(nulls, ", ") + `, updated_at = NOW()
			WHERE last_reset_time IS NULL OR last_reset_time < $1`,
	}
}

// LoadProgression returns the stored progression, an empty one when no row exists.
func (r *ProgressionRepository) LoadProgression(ctx context.Context, id model.PlayerID) (*model.Progression, error) {
	p := model.NewProgression(id)

	var lastReset *time.Time
	slots := make([]*string, model.TreeCount*model.TierCount)
	dest := make([]any, 0, 4+len(slots))
	dest = append(dest, &p.PointsAvailable, &p.PointsSpent, &p.UltimateCount, &lastReset)
	for i := range slots {
		dest = append(dest, &slots[i])
	}

	err := r.pool.QueryRow(ctx, r.selectSQL, string(id)).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading progression %s: %w", id, err)
	}

	SetSlots(p, slots)
	if lastReset != nil {
		p.LastReset = *lastReset
	}
	return p, nil
}

// SaveProgression upserts the progression columns.
func (r *ProgressionRepository) SaveProgression(ctx context.Context, p *model.Progression) error {
	args := make([]any, 0, 5+model.TreeCount*model.TierCount)
	args = append(args, string(p.PlayerID), p.PointsAvailable, p.PointsSpent, p.UltimateCount, NullTime(p.LastReset))
	args = append(args, SlotValues(p)...)

	if _, err := r.pool.Exec(ctx, r.upsertSQL, args...); err != nil {
		return fmt.Errorf("saving progression %s: %w", p.PlayerID, err)
	}
	return nil
}

// ResetProgressions clears every row last reset before at. XP columns are kept.
func (r *ProgressionRepository) ResetProgressions(ctx context.Context, at time.Time) error {
	tag, err := r.pool.Exec(ctx, r.resetSQL, at)
	if err != nil {
		return fmt.Errorf("resetting progressions: %w", err)
	}
	slog.Info("progressions reset", "at", at, "rows", tag.RowsAffected())
	return nil
}

// LoadXP returns the stored XP state, a fresh one when no row exists.
func (r *ProgressionRepository) LoadXP(ctx context.Context, id model.PlayerID) (*model.XPState, error) {
	s := model.NewXPState(id)
	err := r.pool.QueryRow(ctx,
		`SELECT total_xp, current_xp, xp_multiplier FROM player_progression WHERE player_id = $1`,
		string(id),
	).Scan(&s.TotalXP, &s.CurrentXP, &s.Multiplier)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading xp %s: %w", id, err)
	}
	return s, nil
}

// SaveXP upserts the XP columns.
func (r *ProgressionRepository) SaveXP(ctx context.Context, s *model.XPState) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO player_progression (player_id, total_xp, current_xp, xp_multiplier)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (player_id) DO UPDATE SET
			total_xp = EXCLUDED.total_xp,
			current_xp = EXCLUDED.current_xp,
			xp_multiplier = EXCLUDED.xp_multiplier,
			updated_at = NOW()`,
		string(s.PlayerID), s.TotalXP, s.CurrentXP, s.Multiplier,
	)
	if err != nil {
		return fmt.Errorf("saving xp %s: %w", s.PlayerID, err)
	}
	return nil
}
