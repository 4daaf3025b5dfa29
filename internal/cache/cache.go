// Package cache implements the hash-per-key store the engagement layer is
// built on. Every logical entry is a Redis hash with a bounded lifetime:
// short by default, long for entries that should survive a session (e.g.
// "remember me" tokens). Queue-style entries support an atomic
// drain/ack rotation so a reconciliation batch can be retried if the
// durable write behind it fails.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps connection-level failures. Callers treat it as
// transient and retryable, never as a semantic miss.
var ErrUnavailable = errors.New("cache unavailable")

// Batch collects writes that must land together. Implementations apply
// the collected commands as a single pipelined round-trip so a partial
// update can not be observed.
type Batch interface {
	SetField(key, field, value string)
	IncrField(key, field string, delta int64)
	Touch(key string, permanent bool)
}

// Store is the cache contract consumed by the auth and engagement layers.
// The production implementation is Redis; tests inject Memory.
type Store interface {
	// SetAll replaces the fields of key and stamps its expiry.
	SetAll(ctx context.Context, key string, fields map[string]string, permanent bool) error
	// SetAllNX populates key only if it does not exist yet. Returns true
	// when this call created the entry. Existence check and write are one
	// atomic step, closing the double-initialization race of a separate
	// exists-then-set.
	SetAllNX(ctx context.Context, key string, fields map[string]string, permanent bool) (bool, error)
	// SetField writes one field and refreshes the key's expiry.
	SetField(ctx context.Context, key, field, value string, permanent bool) error
	// GetAll returns all fields of key; an absent key yields an empty map.
	GetAll(ctx context.Context, key string) (map[string]string, error)
	// GetField returns one field; an absent field yields "".
	GetField(ctx context.Context, key, field string) (string, error)
	// IncrField adds delta to an integer field and returns the new value.
	IncrField(ctx context.Context, key, field string, delta int64) (int64, error)
	// Touch refreshes the expiry of key without changing its fields.
	Touch(ctx context.Context, key string, permanent bool) error
	// Delete removes whole keys.
	Delete(ctx context.Context, keys ...string) error
	// DeleteField removes single fields from a key.
	DeleteField(ctx context.Context, key string, fields ...string) error
	// Apply runs the writes collected by fn as one atomic batch.
	Apply(ctx context.Context, fn func(b Batch)) error
	// Drain rotates key aside to a processing key and returns its
	// contents. If a previous drain was never acked its contents are
	// returned again and key is left untouched, so a failed batch is
	// retried before new accumulation. An empty map means nothing to do.
	Drain(ctx context.Context, key string) (map[string]string, error)
	// Ack discards the processing entry produced by Drain. Call only
	// after the durable write for the drained batch has committed.
	Ack(ctx context.Context, key string) error
}

// Redis implements Store on top of a go-redis client.
type Redis struct {
	rdb           *redis.Client
	defaultExpire time.Duration
	longExpire    time.Duration
}

// NewRedis wraps client with the given default and long expiries.
func NewRedis(client *redis.Client, defaultExpire, longExpire time.Duration) *Redis {
	return &Redis{rdb: client, defaultExpire: defaultExpire, longExpire: longExpire}
}

func (r *Redis) ttl(permanent bool) time.Duration {
	if permanent {
		return r.longExpire
	}
	return r.defaultExpire
}

func wrap(op string, err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

func (r *Redis) SetAll(ctx context.Context, key string, fields map[string]string, permanent bool) error {
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, flatten(fields)...)
	pipe.Expire(ctx, key, r.ttl(permanent))
	_, err := pipe.Exec(ctx)
	return wrap("cache set", err)
}

// setNXScript writes the hash only when the key is absent, stamping the
// expiry in the same script invocation.
var setNXScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return 0
	end
	for i = 2, #ARGV, 2 do
		redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
	end
	redis.call('EXPIRE', KEYS[1], ARGV[1])
	return 1
`)

func (r *Redis) SetAllNX(ctx context.Context, key string, fields map[string]string, permanent bool) (bool, error) {
	args := make([]interface{}, 0, 1+2*len(fields))
	args = append(args, int64(r.ttl(permanent)/time.Second))
	args = append(args, flatten(fields)...)
	n, err := setNXScript.Run(ctx, r.rdb, []string{key}, args...).Int()
	if err != nil {
		return false, wrap("cache setnx", err)
	}
	return n == 1, nil
}

func (r *Redis) SetField(ctx context.Context, key, field, value string, permanent bool) error {
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, field, value)
	pipe.Expire(ctx, key, r.ttl(permanent))
	_, err := pipe.Exec(ctx)
	return wrap("cache hset", err)
}

func (r *Redis) GetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrap("cache hgetall", err)
	}
	return m, nil
}

func (r *Redis) GetField(ctx context.Context, key, field string) (string, error) {
	v, err := r.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", wrap("cache hget", err)
	}
	return v, nil
}

func (r *Redis) IncrField(ctx context.Context, key, field string, delta int64) (int64, error) {
	n, err := r.rdb.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, wrap("cache hincrby", err)
	}
	return n, nil
}

func (r *Redis) Touch(ctx context.Context, key string, permanent bool) error {
	return wrap("cache expire", r.rdb.Expire(ctx, key, r.ttl(permanent)).Err())
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	return wrap("cache del", r.rdb.Del(ctx, keys...).Err())
}

func (r *Redis) DeleteField(ctx context.Context, key string, fields ...string) error {
	return wrap("cache hdel", r.rdb.HDel(ctx, key, fields...).Err())
}

// redisBatch queues commands on a TxPipeline; Exec sends them as one
// MULTI/EXEC block.
type redisBatch struct {
	ctx  context.Context
	r    *Redis
	pipe redis.Pipeliner
}

func (b *redisBatch) SetField(key, field, value string) {
	b.pipe.HSet(b.ctx, key, field, value)
}

func (b *redisBatch) IncrField(key, field string, delta int64) {
	b.pipe.HIncrBy(b.ctx, key, field, delta)
}

func (b *redisBatch) Touch(key string, permanent bool) {
	b.pipe.Expire(b.ctx, key, b.r.ttl(permanent))
}

func (r *Redis) Apply(ctx context.Context, fn func(b Batch)) error {
	pipe := r.rdb.TxPipeline()
	fn(&redisBatch{ctx: ctx, r: r, pipe: pipe})
	_, err := pipe.Exec(ctx)
	return wrap("cache apply", err)
}

func processingKey(key string) string { return key + ":processing" }

// drainScript rotates the accumulation hash aside unless an unacked
// rotation is still pending, then returns the pending contents.
var drainScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[2]) == 0 and redis.call('EXISTS', KEYS[1]) == 1 then
		redis.call('RENAME', KEYS[1], KEYS[2])
	end
	return redis.call('HGETALL', KEYS[2])
`)

func (r *Redis) Drain(ctx context.Context, key string) (map[string]string, error) {
	raw, err := drainScript.Run(ctx, r.rdb, []string{key, processingKey(key)}).StringSlice()
	if err != nil {
		return nil, wrap("cache drain", err)
	}
	out := make(map[string]string, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		out[raw[i]] = raw[i+1]
	}
	return out, nil
}

func (r *Redis) Ack(ctx context.Context, key string) error {
	return wrap("cache ack", r.rdb.Del(ctx, processingKey(key)).Err())
}

func flatten(fields map[string]string) []interface{} {
	out := make([]interface{}, 0, 2*len(fields))
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}
