package net

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/redis/go-redis/v9"

	"github.com/zalando/signet/logging"
)

// RedisOptions is used to configure the redis.Ring
type RedisOptions struct {
	// Addrs are the list of redis shards
	Addrs []string

	// Password is the password needed to connect to the redis shards
	Password string

	// ReadTimeout for redis socket reads
	ReadTimeout time.Duration
	// WriteTimeout for redis socket writes
	WriteTimeout time.Duration
	// DialTimeout is the max time.Duration to dial a new connection
	DialTimeout time.Duration
	// PoolTimeout is the max time.Duration to get a connection from pool
	PoolTimeout time.Duration

	// MinIdleConns is the minimum number of socket connections to redis
	MinIdleConns int
	// MaxIdleConns is the maximum number of socket connections to redis
	MaxIdleConns int

	// Tracer provides OpenTracing for redis queries.
	Tracer opentracing.Tracer
	// Log is the logger that is used
	Log logging.Logger
}

// RedisRingClient is a redis ring client that implements the key-value
// store and the distributed lock signet's credential cache needs.
type RedisRingClient struct {
	ring   *redis.Ring
	log    logging.Logger
	tracer opentracing.Tracer
	quit   chan struct{}
	closed bool
}

const (
	DefaultReadTimeout  = 25 * time.Millisecond
	DefaultWriteTimeout = 25 * time.Millisecond
	DefaultPoolTimeout  = 25 * time.Millisecond
	DefaultDialTimeout  = 25 * time.Millisecond
	DefaultMinConns     = 100
	DefaultMaxConns     = 100
)

// releaseScript deletes a lock key only if it still holds the caller's
// token, so an expired holder cannot release a lock acquired by
// someone else.
var releaseScript = redis.NewScript(`if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func NewRedisRingClient(ro *RedisOptions) *RedisRingClient {
	r := &RedisRingClient{
		quit:   make(chan struct{}),
		tracer: &opentracing.NoopTracer{},
	}

	ringOptions := &redis.RingOptions{
		Addrs: map[string]string{},
	}

	if ro != nil {
		for idx, addr := range ro.Addrs {
			ringOptions.Addrs[fmt.Sprintf("redis%d", idx)] = addr
		}
		ringOptions.Password = ro.Password
		ringOptions.ReadTimeout = ro.ReadTimeout
		ringOptions.WriteTimeout = ro.WriteTimeout
		ringOptions.PoolTimeout = ro.PoolTimeout
		ringOptions.DialTimeout = ro.DialTimeout
		ringOptions.MinIdleConns = ro.MinIdleConns
		ringOptions.PoolSize = ro.MaxIdleConns

		if ro.Tracer != nil {
			r.tracer = ro.Tracer
		}
		r.log = ro.Log
	}
	if r.log == nil {
		r.log = &logging.DefaultLog{}
	}

	r.ring = redis.NewRing(ringOptions)

	return r
}

// RingAvailable pings the ring with backoff and reports whether it
// answered within the retries.
func (r *RedisRingClient) RingAvailable() bool {
	var err error
	err = backoff.Retry(func() error {
		_, err = r.ring.Ping(context.Background()).Result()
		if err != nil {
			r.log.Infof("Failed to ping redis, retry with backoff: %v", err)
		}
		return err
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 7))

	return err == nil
}

// StartSpan starts a span for a redis query.
func (r *RedisRingClient) StartSpan(operationName string, opts ...opentracing.StartSpanOption) opentracing.Span {
	return r.tracer.StartSpan(operationName, opts...)
}

func (r *RedisRingClient) Close() {
	if !r.closed {
		r.closed = true
		close(r.quit)
		if err := r.ring.Close(); err != nil {
			r.log.Errorf("Failed to close redis ring: %v", err)
		}
	}
}

// Get reads key and reports whether it exists. A missing key is not an
// error.
func (r *RedisRingClient) Get(ctx context.Context, key string) (string, bool, error) {
	span := r.StartSpan("redis_get")
	defer span.Finish()

	res, err := r.ring.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return res, true, nil
}

// SetWithTTL stores value under key with the given expiry.
func (r *RedisRingClient) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	span := r.StartSpan("redis_set")
	defer span.Finish()

	return r.ring.Set(ctx, key, value, ttl).Err()
}

// Delete removes key.
func (r *RedisRingClient) Delete(ctx context.Context, key string) error {
	span := r.StartSpan("redis_del")
	defer span.Finish()

	return r.ring.Del(ctx, key).Err()
}

// TTL returns the remaining expiry of key.
func (r *RedisRingClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	span := r.StartSpan("redis_ttl")
	defer span.Finish()

	return r.ring.TTL(ctx, key).Result()
}

// Acquire tries to take the distributed lock identified by key with
// the given lease ttl, using SET NX PX. On success it returns the
// token required to release the lock.
func (r *RedisRingClient) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	span := r.StartSpan("redis_lock_acquire")
	defer span.Finish()

	token := uuid.NewString()
	ok, err := r.ring.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock identified by key, only if it still holds
// token.
func (r *RedisRingClient) Release(ctx context.Context, key, token string) error {
	span := r.StartSpan("redis_lock_release")
	defer span.Finish()

	return releaseScript.Run(ctx, r.ring, []string{key}, token).Err()
}
