// Package gate enforces the operation-permitted precondition in front of
// the ledger core: while the admin config is frozen, no mutating
// operation may run. The core itself never checks this; it assumes the
// gate already passed.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Aurory-Game/ocil/locker"
	"github.com/Aurory-Game/ocil/log"
)

// ErrFrozen is returned while ledger operations are administratively
// frozen.
var ErrFrozen = errors.New("ledger operations are frozen")

const (
	frozenKey  = "casier:config:frozen"
	defaultTTL = 5 * time.Second
)

// ConfigSource supplies the current admin config. Satisfied by
// locker.ConfigStore implementations.
type ConfigSource interface {
	GetConfig(ctx context.Context) (*locker.Config, error)
}

// Gate answers whether ledger-mutating operations are currently
// permitted. Reads go through a short-TTL redis cache when a client is
// configured; cache failures degrade to direct config reads.
type Gate struct {
	source ConfigSource
	cache  *redis.Client
	ttl    time.Duration
	logger log.Logger
}

// New creates a Gate. cache may be nil to disable caching; a
// non-positive ttl falls back to the default.
func New(source ConfigSource, cache *redis.Client, ttl time.Duration, logger log.Logger) *Gate {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Gate{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: log.OrNone(logger),
	}
}

// Allow returns nil when mutations are permitted, ErrFrozen when the
// config is frozen, and locker.ErrConfigNotFound when no config has been
// initialized yet.
func (g *Gate) Allow(ctx context.Context) error {
	if frozen, ok := g.cached(ctx); ok {
		if frozen {
			return ErrFrozen
		}

		return nil
	}

	cfg, err := g.source.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	g.store(ctx, cfg.Frozen)

	if cfg.Frozen {
		return ErrFrozen
	}

	return nil
}

// Invalidate drops the cached freeze flag so the next Allow re-reads the
// config. Called after administrative freeze changes.
func (g *Gate) Invalidate(ctx context.Context) {
	if g.cache == nil {
		return
	}

	if err := g.cache.Del(ctx, frozenKey).Err(); err != nil {
		g.logger.Warnf("invalidate freeze cache: %v", err)
	}
}

func (g *Gate) cached(ctx context.Context) (frozen, ok bool) {
	if g.cache == nil {
		return false, false
	}

	val, err := g.cache.Get(ctx, frozenKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			g.logger.Warnf("read freeze cache: %v", err)
		}

		return false, false
	}

	return val == "1", true
}

func (g *Gate) store(ctx context.Context, frozen bool) {
	if g.cache == nil {
		return
	}

	val := "0"
	if frozen {
		val = "1"
	}

	if err := g.cache.Set(ctx, frozenKey, val, g.ttl).Err(); err != nil {
		g.logger.Warnf("write freeze cache: %v", err)
	}
}
