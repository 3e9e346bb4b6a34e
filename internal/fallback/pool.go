// internal/fallback/pool.go
package fallback

import (
	"context"
	"fmt"

	"content-scheduler/internal/common/database"
	"content-scheduler/internal/common/errors"
)

// Pool hands out pre-generated content references when live generation is
// unavailable.
type Pool interface {
	// Take removes and returns one reference for the client. Returns a
	// POOL_EMPTY error when nothing is buffered.
	Take(ctx context.Context, clientID string) (string, error)
	// Size reports how many references are buffered for the client.
	Size(ctx context.Context, clientID string) (int64, error)
	// Put buffers a reference for later use.
	Put(ctx context.Context, clientID, contentRef string) error
}

// RedisPool keeps per-client fallback buffers in Redis lists. Producers push
// with RPUSH, consumers pop with LPOP, so the oldest buffered piece goes out
// first.
type RedisPool struct {
	redis     *database.RedisClient
	keyPrefix string
}

func NewRedisPool(redis *database.RedisClient, keyPrefix string) *RedisPool {
	if keyPrefix == "" {
		keyPrefix = "fallback-pool"
	}
	return &RedisPool{redis: redis, keyPrefix: keyPrefix}
}

func (p *RedisPool) key(clientID string) string {
	return fmt.Sprintf("%s:%s", p.keyPrefix, clientID)
}

func (p *RedisPool) Take(ctx context.Context, clientID string) (string, error) {
	ref, err := p.redis.LPop(ctx, p.key(clientID))
	if err == database.ErrRedisNil {
		return "", errors.NewPoolEmptyError(clientID)
	}
	if err != nil {
		return "", errors.NewStoreFailureError("pool take", err)
	}
	return ref, nil
}

func (p *RedisPool) Size(ctx context.Context, clientID string) (int64, error) {
	n, err := p.redis.LLen(ctx, p.key(clientID))
	if err != nil {
		return 0, errors.NewStoreFailureError("pool size", err)
	}
	return n, nil
}

func (p *RedisPool) Put(ctx context.Context, clientID, contentRef string) error {
	if err := p.redis.RPush(ctx, p.key(clientID), contentRef); err != nil {
		return errors.NewStoreFailureError("pool put", err)
	}
	return nil
}
