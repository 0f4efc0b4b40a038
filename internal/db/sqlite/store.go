// Package sqlite is a single-file durable store for one-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/udisondev/survivalskills/internal/db"
	"github.com/udisondev/survivalskills/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements progression, XP and cooldown persistence over SQLite.
type Store struct {
	db *sql.DB

	selectSQL string
	upsertSQL string
	resetSQL  string
}

// Open opens (creating if needed) the database file and applies migrations.
// path ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode=WAL`, `PRAGMA busy_timeout=5000`} {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("configuring sqlite (%s): %w", pragma, err)
		}
	}

	if err := migrate(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	slog.Info("sqlite store opened", "path", path)
	return newStore(sqlDB), nil
}

func migrate(ctx context.Context, sqlDB *sql.DB) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, sub)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("running sqlite migrations: %w", err)
	}
	return nil
}

func newStore(sqlDB *sql.DB) *Store {
	slots := db.SlotColumns()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(slots)), ", ")
	updates := make([]string, len(slots))
	nulls := make([]string, len(slots))
	for i, c := range slots {
		updates[i] = c + " = excluded." + c
		nulls[i] = c + " = NULL"
	}

	return &Store{
		db: sqlDB,
		selectSQL: `SELECT points_available, points_spent, ultimate_count, last_reset_ms, ` +
			strings.Join(slots, ", ") +
			` FROM player_progression WHERE player_id = ?`,
		upsertSQL: `INSERT INTO player_progression
			(player_id, points_available, points_spent, ultimate_count, last_reset_ms, ` + strings.Join(slots, ", ") + `)
			VALUES (?, ?, ?, ?, ?, ` + placeholders + `)
			ON CONFLICT (player_id) DO UPDATE SET
				points_available = excluded.points_available,
				points_spent = excluded.points_spent,
				ultimate_count = excluded.ultimate_count,
				last_reset_ms = excluded.last_reset_ms,
				` + strings.Join(updates, ", "),
		resetSQL: `UPDATE player_progression SET
				points_available = 0, points_spent = 0, ultimate_count = 0, last_reset_ms = ?1, ` +
			strings.Join(nulls, ", ") + `
			WHERE last_reset_ms IS NULL OR last_reset_ms < ?1`,
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadProgression returns the stored progression, an empty one when no row exists.
func (s *Store) LoadProgression(ctx context.Context, id model.PlayerID) (*model.Progression, error) {
	p := model.NewProgression(id)

	var lastReset sql.NullInt64
	slots := make([]sql.NullString, model.TreeCount*model.TierCount)
	dest := make([]any, 0, 4+len(slots))
	dest = append(dest, &p.PointsAvailable, &p.PointsSpent, &p.UltimateCount, &lastReset)
	for i := range slots {
		dest = append(dest, &slots[i])
	}

	err := s.db.QueryRowContext(ctx, s.selectSQL, string(id)).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading progression %s: %w", id, err)
	}

	vals := make([]*string, len(slots))
	for i := range slots {
		if slots[i].Valid {
			vals[i] = &slots[i].String
		}
	}
	db.SetSlots(p, vals)
	if lastReset.Valid {
		p.LastReset = db.FromMillis(lastReset.Int64)
	}
	return p, nil
}

// SaveProgression upserts the progression columns.
func (s *Store) SaveProgression(ctx context.Context, p *model.Progression) error {
	var lastReset any
	if !p.LastReset.IsZero() {
		lastReset = db.ToMillis(p.LastReset)
	}

	args := make([]any, 0, 5+model.TreeCount*model.TierCount)
	args = append(args, string(p.PlayerID), p.PointsAvailable, p.PointsSpent, p.UltimateCount, lastReset)
	args = append(args, db.SlotValues(p)...)

	if _, err := s.db.ExecContext(ctx, s.upsertSQL, args...); err != nil {
		return fmt.Errorf("saving progression %s: %w", p.PlayerID, err)
	}
	return nil
}

// ResetProgressions clears every row last reset before at. XP columns are kept.
func (s *Store) ResetProgressions(ctx context.Context, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.resetSQL, db.ToMillis(at))
	if err != nil {
		return fmt.Errorf("resetting progressions: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.Info("progressions reset", "at", at, "rows", n)
	return nil
}

// LoadXP returns the stored XP state, a fresh one when no row exists.
func (s *Store) LoadXP(ctx context.Context, id model.PlayerID) (*model.XPState, error) {
	x := model.NewXPState(id)
	err := s.db.QueryRowContext(ctx,
		`SELECT total_xp, current_xp, xp_multiplier FROM player_progression WHERE player_id = ?`,
		string(id),
	).Scan(&x.TotalXP, &x.CurrentXP, &x.Multiplier)
	if errors.Is(err, sql.ErrNoRows) {
		return x, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading xp %s: %w", id, err)
	}
	return x, nil
}

// SaveXP upserts the XP columns.
func (s *Store) SaveXP(ctx context.Context, x *model.XPState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO player_progression (player_id, total_xp, current_xp, xp_multiplier)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (player_id) DO UPDATE SET
			total_xp = excluded.total_xp,
			current_xp = excluded.current_xp,
			xp_multiplier = excluded.xp_multiplier`,
		string(x.PlayerID), x.TotalXP, x.CurrentXP, x.Multiplier,
	)
	if err != nil {
		return fmt.Errorf("saving xp %s: %w", x.PlayerID, err)
	}
	return nil
}

// LoadCooldowns returns every stored gate of the player.
func (s *Store) LoadCooldowns(ctx context.Context, id model.PlayerID) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ability_name, expiry_ts FROM player_cooldowns WHERE player_id = ?`, string(id))
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
		out[ability] = db.FromMillis(expiry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cooldown rows: %w", err)
	}
	return out, nil
}

// SaveCooldown upserts one gate.
func (s *Store) SaveCooldown(ctx context.Context, id model.PlayerID, ability string, expiry time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO player_cooldowns (player_id, ability_name, expiry_ts) VALUES (?, ?, ?)
		 ON CONFLICT (player_id, ability_name) DO UPDATE SET expiry_ts = excluded.expiry_ts`,
		string(id), ability, db.ToMillis(expiry),
	)
	if err != nil {
		return fmt.Errorf("saving cooldown %s/%s: %w", id, ability, err)
	}
	return nil
}

// DeleteCooldown removes one gate.
func (s *Store) DeleteCooldown(ctx context.Context, id model.PlayerID, ability string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM player_cooldowns WHERE player_id = ? AND ability_name = ?`, string(id), ability,
	); err != nil {
		return fmt.Errorf("deleting cooldown %s/%s: %w", id, ability, err)
	}
	return nil
}

// DeleteExpiredCooldowns purges every gate with expiry ≤ now.
func (s *Store) DeleteExpiredCooldowns(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM player_cooldowns WHERE expiry_ts <= ?`, db.ToMillis(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired cooldowns: %w", err)
	}
	return res.RowsAffected()
}
