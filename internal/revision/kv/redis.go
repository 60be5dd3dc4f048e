package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisBackend implements Backend on top of Redis. Entries are stored as plain
// strings under "<namespace><key>"; the bytes counted against capacity are
// tracked in a counter next to them.
type RedisBackend struct {
	client    *redis.Client
	namespace string
	capacity  int64
}

// NewRedisBackend creates a Redis-based backend. Namespace may be empty.
func NewRedisBackend(client *redis.Client, namespace string, capacity int64) *RedisBackend {
	if namespace == "" {
		namespace = "autosave:"
	}
	return &RedisBackend{client: client, namespace: namespace, capacity: capacity}
}

func (r *RedisBackend) key(k string) string {
	return r.namespace + k
}

func (r *RedisBackend) usageKey() string {
	return r.namespace + "__usage"
}

// translate maps Redis errors onto the backend error kinds. A server running
// out of maxmemory answers writes with an OOM error.
func translate(op string, err error) error {
	if strings.HasPrefix(err.Error(), "OOM ") {
		return ErrQuotaExceeded
	}
	return fmt.Errorf("redis %s: %w", op, err)
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, translate("get", err)
	}
	return v, true, nil
}

// maxTxRetries bounds the optimistic retries of one Set or Remove when
// another client touches the same keys between WATCH and EXEC.
const maxTxRetries = 10

// reader is the part of redis.Client and redis.Tx used to size entries.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	StrLen(ctx context.Context, key string) *redis.IntCmd
}

// storedSize returns the bytes currently counted for key (0 when absent).
func (r *RedisBackend) storedSize(ctx context.Context, rd reader, key string) (int64, error) {
	n, err := rd.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	l, err := rd.StrLen(ctx, r.key(key)).Result()
	if err != nil {
		return 0, err
	}
	return int64(len(key)) + l, nil
}

func (r *RedisBackend) used(ctx context.Context, rd reader) (int64, error) {
	u, err := rd.Get(ctx, r.usageKey()).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return u, nil
}

// watched runs fn in a WATCH transaction on key and the usage counter,
// retrying when another client changed either before EXEC.
func (r *RedisBackend) watched(ctx context.Context, op, key string, fn func(*redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, fn, r.key(key), r.usageKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrQuotaExceeded) {
			return translate(op, err)
		}
		return err
	}
	return fmt.Errorf("redis %s: %w", op, redis.TxFailedErr)
}

// Set stores value and adjusts the usage counter in one transaction, so
// concurrent writers sharing the namespace cannot both pass the quota check.
func (r *RedisBackend) Set(ctx context.Context, key, value string) error {
	newSize := entrySize(key, value)
	return r.watched(ctx, "set", key, func(tx *redis.Tx) error {
		oldSize, err := r.storedSize(ctx, tx, key)
		if err != nil {
			return err
		}
		if r.capacity != Unlimited {
			used, err := r.used(ctx, tx)
			if err != nil {
				return err
			}
			if !fits(r.capacity, used, oldSize, newSize) {
				return ErrQuotaExceeded
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(key), value, 0)
			if delta := newSize - oldSize; delta != 0 {
				pipe.IncrBy(ctx, r.usageKey(), delta)
			}
			return nil
		})
		return err
	})
}

func (r *RedisBackend) Remove(ctx context.Context, key string) error {
	return r.watched(ctx, "remove", key, func(tx *redis.Tx) error {
		size, err := r.storedSize(ctx, tx, key)
		if err != nil || size == 0 {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.key(key))
			pipe.DecrBy(ctx, r.usageKey(), size)
			return nil
		})
		return err
	})
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// Keys scans the namespace for keys starting with prefix.
func (r *RedisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := globReplacer.Replace(r.namespace+prefix) + "*"
	var out []string
	iter := r.client.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if k == r.usageKey() {
			continue
		}
		out = append(out, strings.TrimPrefix(k, r.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, translate("scan", err)
	}
	return out, nil
}
