/*
Package credentials implements the read-through cache in front of the
remote credential exchange.

A credential fetch is an expensive signed network call, so results are
stored in a shared key-value store under a principal scoped key, with a
safety margin subtracted from the provider reported lifetime. When a
Locker is configured, concurrent misses for the same principal are
serialized cluster wide: one caller fetches, the others poll the store
and re-read instead of issuing redundant signed requests.
*/
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/zalando/signet/logging"
	"github.com/zalando/signet/metrics"
	"github.com/zalando/signet/provider"
)

const (
	// DefaultSafetyMargin is subtracted from the provider reported
	// credential lifetime before caching, and is the minimum accepted
	// margin: clock skew and network latency must not allow a request
	// to be signed with an already expired credential.
	DefaultSafetyMargin = time.Minute

	// DefaultLockTTL bounds how long a crashed fetch holder can keep
	// the per principal lock.
	DefaultLockTTL = 15 * time.Second

	// DefaultLockRetryDelay is the poll interval of callers waiting
	// for a concurrent fetch to finish.
	DefaultLockRetryDelay = 100 * time.Millisecond
)

// ErrLockWaitTimeout is returned when a caller waited for a concurrent
// fetch, the lock lease ran out, and re-acquiring also failed.
var ErrLockWaitTimeout = errors.New("timed out waiting for concurrent credential fetch")

// Store is the key-value store the cache persists entries in.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Locker is the distributed mutual exclusion primitive used to
// serialize fetches per principal. Acquire is non-blocking.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// FetchFunc performs the remote credential exchange on a cache miss.
type FetchFunc func(ctx context.Context) (*provider.Credential, error)

// Options to create a Cache.
type Options struct {
	// Store persists the cache entries, required.
	Store Store

	// Locker serializes concurrent fetches per principal. Optional:
	// without it the cache is a plain read-through cache and
	// concurrent misses each fetch.
	Locker Locker

	// Namespace prefixes every key, defaults to "signet".
	Namespace string

	// SafetyMargin subtracted from the provider ttl, raised to
	// DefaultSafetyMargin when smaller.
	SafetyMargin time.Duration

	// LockTTL is the lock lease, defaults to DefaultLockTTL.
	LockTTL time.Duration

	// LockRetryDelay is the store poll interval while waiting for a
	// concurrent fetch, defaults to DefaultLockRetryDelay.
	LockRetryDelay time.Duration

	// Now is the clock, defaults to time.Now. Tests override it.
	Now func() time.Time

	// Log, defaults to the logging package default.
	Log logging.Logger

	// Metrics, defaults to metrics.Default.
	Metrics metrics.Metrics
}

// Cache is the get-or-fetch-and-store policy around a credential
// provider. Failed fetches are never cached; callers always get a
// private copy of the credential.
type Cache struct {
	store          Store
	locker         Locker
	namespace      string
	margin         time.Duration
	lockTTL        time.Duration
	lockRetryDelay time.Duration
	now            func() time.Time
	log            logging.Logger
	metrics        metrics.Metrics
}

// New creates a Cache from the options.
func New(o Options) *Cache {
	if o.Namespace == "" {
		o.Namespace = "signet"
	}
	if o.SafetyMargin < DefaultSafetyMargin {
		o.SafetyMargin = DefaultSafetyMargin
	}
	if o.LockTTL <= 0 {
		o.LockTTL = DefaultLockTTL
	}
	if o.LockRetryDelay <= 0 {
		o.LockRetryDelay = DefaultLockRetryDelay
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Log == nil {
		o.Log = &logging.DefaultLog{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Default
	}

	return &Cache{
		store:          o.Store,
		locker:         o.Locker,
		namespace:      o.Namespace,
		margin:         o.SafetyMargin,
		lockTTL:        o.LockTTL,
		lockRetryDelay: o.LockRetryDelay,
		now:            o.Now,
		log:            o.Log,
		metrics:        o.Metrics,
	}
}

func (c *Cache) credentialKey(principal string) string {
	return c.namespace + ":credential:" + principal
}

func (c *Cache) lockKey(principal string) string {
	return c.namespace + ":lock:" + principal
}

// GetOrFetch returns the cached credential for principal, or invokes
// fetch and stores the result. A cached credential inside its safety
// margin counts as a miss and is never returned stale.
func (c *Cache) GetOrFetch(ctx context.Context, principal string, fetch FetchFunc) (*provider.Credential, error) {
	if cred, ok, err := c.lookup(ctx, principal); err != nil {
		return nil, err
	} else if ok {
		c.metrics.IncCounter(metrics.KeyCacheHit)
		return cred, nil
	}
	c.metrics.IncCounter(metrics.KeyCacheMiss)

	if c.locker == nil {
		return c.fetchAndStore(ctx, principal, fetch)
	}

	for {
		token, ok, err := c.locker.Acquire(ctx, c.lockKey(principal), c.lockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return c.fetchLocked(ctx, principal, token, fetch)
		}

		cred, err := c.awaitConcurrentFetch(ctx, principal)
		if err == nil {
			return cred, nil
		}
		if !errors.Is(err, errLockStillHeld) {
			return nil, err
		}
		// lease ran out without a cache entry appearing, the holder
		// likely died: try to take over the fetch
	}
}

func (c *Cache) fetchLocked(ctx context.Context, principal, token string, fetch FetchFunc) (cred *provider.Credential, err error) {
	defer func() {
		// release on every exit path, with a context that survives
		// caller cancellation: an abandoned fetch must not leave a
		// dangling lock for the full lease
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lockTTL)
		defer cancel()
		if rerr := c.locker.Release(releaseCtx, c.lockKey(principal), token); rerr != nil {
			c.log.Errorf("Failed to release credential fetch lock for %s: %v", principal, rerr)
		}
	}()

	// another caller may have completed the fetch between our miss and
	// the lock grant
	if cred, ok, err := c.lookup(ctx, principal); err != nil {
		return nil, err
	} else if ok {
		c.metrics.IncCounter(metrics.KeyCacheHit)
		return cred, nil
	}

	return c.fetchAndStore(ctx, principal, fetch)
}

var errLockStillHeld = errors.New("credential fetch lock still held")

// awaitConcurrentFetch polls the store while another caller holds the
// fetch lock. It returns errLockStillHeld when the lease window passed
// without an entry appearing.
func (c *Cache) awaitConcurrentFetch(ctx context.Context, principal string) (*provider.Credential, error) {
	c.metrics.IncCounter(metrics.KeyCacheLockWait)

	var cred *provider.Credential
	retries := uint64(c.lockTTL / c.lockRetryDelay)
	err := backoff.Retry(func() error {
		var ok bool
		var err error
		cred, ok, err = c.lookup(ctx, principal)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errLockStillHeld
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.lockRetryDelay), retries), ctx))

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return cred, nil
}

func (c *Cache) fetchAndStore(ctx context.Context, principal string, fetch FetchFunc) (*provider.Credential, error) {
	// fetch counters and latency are recorded by the provider client,
	// the cache only reports its own hit, miss and wait keys
	cred, err := fetch(ctx)
	if err != nil {
		// a failed fetch never writes an entry
		return nil, err
	}

	ttl := cred.TTL(c.now()) - c.margin
	if ttl <= 0 {
		c.log.Warnf("Credential for %s expires within the safety margin, not caching", principal)
		return cred.Clone(), nil
	}

	value, err := json.Marshal(cred)
	if err != nil {
		return nil, &provider.EncodingError{Op: "cacheStore", Err: err}
	}

	if err := c.store.SetWithTTL(ctx, c.credentialKey(principal), string(value), ttl); err != nil {
		// serving the fresh credential beats failing the caller, but
		// the store problem must be visible
		c.metrics.IncCounter(metrics.KeyCacheStoreFailure)
		c.log.Errorf("Failed to store credential for %s: %v", principal, err)
	}

	return cred.Clone(), nil
}

// lookup reads and validates the cache entry for principal. Entries
// inside the safety margin are treated as absent.
func (c *Cache) lookup(ctx context.Context, principal string) (*provider.Credential, bool, error) {
	value, ok, err := c.store.Get(ctx, c.credentialKey(principal))
	if err != nil || !ok {
		return nil, false, err
	}

	var cred provider.Credential
	if err := json.Unmarshal([]byte(value), &cred); err != nil {
		// a corrupt entry is dropped and refetched
		c.log.Warnf("Dropping unreadable cache entry for %s: %v", principal, err)
		if derr := c.store.Delete(ctx, c.credentialKey(principal)); derr != nil {
			c.log.Errorf("Failed to delete unreadable cache entry for %s: %v", principal, derr)
		}
		return nil, false, nil
	}

	if cred.Expired(c.now(), c.margin) {
		return nil, false, nil
	}
	return &cred, true, nil
}

// Invalidate deletes the cache entry for principal, e.g. when the
// backing remote credential is known to be rotated.
func (c *Cache) Invalidate(ctx context.Context, principal string) error {
	return c.store.Delete(ctx, c.credentialKey(principal))
}
