package keychain

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

type redisKeychain struct {
	client *redis.Client
	cfg    config
}

var _ Keychain = (*redisKeychain)(nil)

// NewRedis returns a Keychain backed by Redis string keys of the form
// "<prefix>:<service>:<account>". The caller owns the redis.Client lifecycle.
// Redis stores payloads as given; wrap with NewEncrypted for secrets.
func NewRedis(client *redis.Client, opts ...Option) Keychain {
	return &redisKeychain{client: client, cfg: applyOptions(opts)}
}

func (r *redisKeychain) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.cfg.queryTimeout)
}

func (r *redisKeychain) key(q Query) string {
	return r.cfg.prefix + ":" + q.Service + ":" + q.Account
}

func (r *redisKeychain) unavailable(op string, q Query, err error) Status {
	r.cfg.logger.Error("keychain redis %s failed for %s/%s: %s", op, q.Service, q.Account, err)
	return StatusUnavailable
}

func (r *redisKeychain) Add(ctx context.Context, q Query) Status {
	if !q.valid() {
		return StatusInvalidQuery
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	ok, err := r.client.SetNX(qctx, r.key(q), q.Data, 0).Result()
	if err != nil {
		return r.unavailable("add", q, err)
	}
	if !ok {
		return StatusDuplicateItem
	}
	return StatusSuccess
}

func (r *redisKeychain) Find(ctx context.Context, q Query) ([]byte, Status) {
	if !q.valid() {
		return nil, StatusInvalidQuery
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	data, err := r.client.Get(qctx, r.key(q)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, StatusItemNotFound
	}
	if err != nil {
		return nil, r.unavailable("find", q, err)
	}
	return data, StatusSuccess
}

func (r *redisKeychain) Delete(ctx context.Context, q Query) Status {
	if !q.valid() {
		return StatusInvalidQuery
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	n, err := r.client.Del(qctx, r.key(q)).Result()
	if err != nil {
		return r.unavailable("delete", q, err)
	}
	if n == 0 {
		return StatusItemNotFound
	}
	return StatusSuccess
}
