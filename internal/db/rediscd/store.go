// Package rediscd keeps cooldown gates in Redis.
//
// Each player is one hash (field = ability, value = expiry epoch ms). The key
// expires with its latest gate, so stale players disappear without a sweep.
package rediscd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/udisondev/survivalskills/internal/clock"
	"github.com/udisondev/survivalskills/internal/model"
)

// DefaultPrefix namespaces keys: <prefix>:<player>.
const DefaultPrefix = "survival:cd"

// saveScript sets the field and extends the key TTL to the furthest expiry.
var saveScript = redis.NewScript(`
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
local want = tonumber(ARGV[3])
local cur = redis.call('PTTL', KEYS[1])
if cur < want then
  redis.call('PEXPIRE', KEYS[1], want)
end
return 1
`)

// Store implements cooldown.Store.
type Store struct {
	client redis.UniversalClient
	prefix string
	clock  clock.Clock
}

// Options configure a Store.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// Clock must be the one the cooldown registry stamps expiries with. nil = wall clock.
	Clock clock.Clock
}

// New connects to Redis and pings it.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts.Prefix, opts.Clock), nil
}

// NewWithClient wraps an existing client. A nil clk reads the wall clock.
func NewWithClient(client redis.UniversalClient, prefix string, clk clock.Clock) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Store{client: client, prefix: prefix, clock: clk}
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(id model.PlayerID) string {
	return s.prefix + ":" + string(id)
}

// LoadCooldowns returns the player's gates, dropping fields that already expired.
func (s *Store) LoadCooldowns(ctx context.Context, id model.PlayerID) (map[string]time.Time, error) {
	raw, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading cooldowns for %s: %w", id, err)
	}

	now := s.clock.Now()
	out := make(map[string]time.Time, len(raw))
	var stale []string
	for ability, v := range raw {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			stale = append(stale, ability)
			continue
		}
		expiry := time.UnixMilli(ms)
		if !expiry.After(now) {
			stale = append(stale, ability)
			continue
		}
		out[ability] = expiry
	}

	if len(stale) > 0 {
		if err := s.client.HDel(ctx, s.key(id), stale...).Err(); err != nil {
			slog.Debug("dropping stale cooldown fields", "player", id, "error", err)
		}
	}
	return out, nil
}

// SaveCooldown stores one gate. An expiry in the past deletes it instead.
func (s *Store) SaveCooldown(ctx context.Context, id model.PlayerID, ability string, expiry time.Time) error {
	ttl := expiry.Sub(s.clock.Now()).Milliseconds()
	if ttl <= 0 {
		return s.DeleteCooldown(ctx, id, ability)
	}

	err := saveScript.Run(ctx, s.client, []string{s.key(id)}, ability, expiry.UnixMilli(), ttl).Err()
	if err != nil {
		return fmt.Errorf("saving cooldown %s/%s: %w", id, ability, err)
	}
	return nil
}

// DeleteCooldown removes one gate.
func (s *Store) DeleteCooldown(ctx context.Context, id model.PlayerID, ability string) error {
	if err := s.client.HDel(ctx, s.key(id), ability).Err(); err != nil {
		return fmt.Errorf("deleting cooldown %s/%s: %w", id, ability, err)
	}
	return nil
}

// DeleteExpiredCooldowns is a no-op: keys expire on their own and stale fields
// are dropped on load.
func (s *Store) DeleteExpiredCooldowns(context.Context, time.Time) (int64, error) {
	return 0, nil
}
