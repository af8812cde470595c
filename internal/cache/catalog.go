package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/storefront-payments/internal/domain/models"
	"github.com/linemk/storefront-payments/internal/storage"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 5 * time.Minute

// CatalogCache - read-through кэш цен каталога поверх Postgres.
// Ошибки Redis не ломают оформление заказа: запрос уходит в базу.
type CatalogCache struct {
	log    *slog.Logger
	client *redis.Client
	next   storage.CatalogStorage
	ttl    time.Duration
}

var _ storage.CatalogStorage = (*CatalogCache)(nil)

func NewCatalogCache(log *slog.Logger, client *redis.Client, next storage.CatalogStorage, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CatalogCache{
		log:    log,
		client: client,
		next:   next,
		ttl:    ttl,
	}
}

func (c *CatalogCache) Resolve(ctx context.Context, ids []string) (map[string]models.CatalogItem, error) {
	const op = "cache.CatalogCache.Resolve"
	logger := c.log.With(slog.String("op", op))

	res := make(map[string]models.CatalogItem, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	missing := ids
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warn("redis mget failed, falling back to storage", slog.Any("error", err))
	} else {
		missing = missing[:0:0]
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			var item models.CatalogItem
			if err := json.Unmarshal([]byte(raw), &item); err != nil {
				logger.Warn("broken cache entry", slog.String("id", ids[i]), slog.Any("error", err))
				missing = append(missing, ids[i])
				continue
			}
			res[ids[i]] = item
		}
	}

	if len(missing) == 0 {
		return res, nil
	}

	loaded, err := c.next.Resolve(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pipe := c.client.Pipeline()
	for id, item := range loaded {
		res[id] = item
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal item failed: %w", op, err)
		}
		pipe.Set(ctx, cacheKey(id), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("redis set failed", slog.Any("error", err))
	}

	return res, nil
}

// Invalidate убирает товары из кэша после смены цены
func (c *CatalogCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(id string) string {
	return fmt.Sprintf("catalog:price:%s", id)
}
