package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/survivalskills/internal/model"
)

// CooldownRepository stores cooldown gates in player_cooldowns.
// Expiry is kept as epoch milliseconds.
type CooldownRepository struct {
	pool *pgxpool.Pool
}

// NewCooldownRepository создаёт новый CooldownRepository.
func NewCooldownRepository(pool *pgxpool.Pool) *CooldownRepository {
	return &CooldownRepository{pool: pool}
}

// LoadCooldowns возвращает все сохранённые кулдауны игрока (включая истёкшие).
func (r *CooldownRepository) LoadCooldowns(ctx context.Context, id model.PlayerID) (map[string]time.Time, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ability_name, expiry_ts FROM player_cooldowns WHERE player_id = $1`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("querying cooldowns for %s: %w", id, err)
	}
	defer rows.Close()

	out := make(map[string]time.Time, 8)
	for rows.Next() {
		var (
			ability string
			expiry  int64
		)
		if err := rows.Scan(&ability, &expiry); err != nil {
			return nil, fmt.Errorf("scanning cooldown row: %w", err)
		}
		out[ability] = FromMillis(expiry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cooldown rows: %w", err)
	}
	return out, nil
}

// SaveCooldown upserts one gate.
func (r *CooldownRepository) SaveCooldown(ctx context.Context, id model.PlayerID, ability string, expiry time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO player_cooldowns (player_id, ability_name, expiry_ts)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (player_id, ability_name) DO UPDATE SET expiry_ts = EXCLUDED.expiry_ts`,
		string(id), ability, ToMillis(expiry),
	)
	if err != nil {
		return fmt.Errorf("saving cooldown %s/%s: %w", id, ability, err)
	}
	return nil
}

// DeleteCooldown removes one gate. Missing rows are not an error.
func (r *CooldownRepository) DeleteCooldown(ctx context.Context, id model.PlayerID, ability string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM player_cooldowns WHERE player_id = $1 AND ability_name = $2`,
		string(id), ability,
	)
	if err != nil {
		return fmt.Errorf("deleting cooldown %s/%s: %w", id, ability, err)
	}
	return nil
}

// DeleteExpiredCooldowns purges every gate with expiry ≤ now.
func (r *CooldownRepository) DeleteExpiredCooldowns(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM player_cooldowns WHERE expiry_ts <= $1`, ToMillis(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired cooldowns: %w", err)
	}
	return tag.RowsAffected(), nil
}
