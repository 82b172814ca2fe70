package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/metrics"
	red "github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/redis"
)

var _ repository.AccessGrantRepository = (*accessRepoCacheDecorator)(nil)

// accessRepoCacheDecorator caches positive HasAccess answers. Grants are never
// revoked, so a cached "yes" cannot go stale; "no" is never cached.
type accessRepoCacheDecorator struct {
	inner repository.AccessGrantRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewAccessGrantRepoCacheDecorator(inner repository.AccessGrantRepository, cache red.RedisClient, logger *zerolog.Logger) repository.AccessGrantRepository {
	l := logger.With().Str("component", "access_cache").Logger()
	return &accessRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   24 * time.Hour,
		log:   &l,
	}
}

func accessKey(userID int64) string { return fmt.Sprintf("access:%d", userID) }

// Grant writes through; the cache warms on the next read after commit.
func (d *accessRepoCacheDecorator) Grant(ctx context.Context, tx repository.Tx, g *model.AccessGrant) (bool, error) {
	return d.inner.Grant(ctx, tx, g)
}

func (d *accessRepoCacheDecorator) HasAccess(ctx context.Context, tx repository.Tx, userID int64) (bool, error) {
	// inside a transaction the ledger is the only truth
	if tx != repository.NoTX {
		return d.inner.HasAccess(ctx, tx, userID)
	}
	key := accessKey(userID)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil && val == "1":
		metrics.IncCacheRequest("access", "hit")
		return true, nil
	case err != nil && !errors.Is(err, red.Nil):
		d.log.Warn().Err(err).Int64("tg_id", userID).Msg("access cache read failed")
	}

	metrics.IncCacheRequest("access", "miss")
	ok, err := d.inner.HasAccess(ctx, tx, userID)
	if err != nil {
		return false, err
	}
	if ok {
		_ = d.cache.Set(ctx, key, "1", d.ttl)
	}
	return ok, nil
}

func (d *accessRepoCacheDecorator) FindByUser(ctx context.Context, tx repository.Tx, userID int64) (*model.AccessGrant, error) {
	return d.inner.FindByUser(ctx, tx, userID)
}
