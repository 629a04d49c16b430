package signet

import (
	"context"
	"errors"
	"time"

	"github.com/zalando/signet/credentials"
	"github.com/zalando/signet/logging"
	"github.com/zalando/signet/metrics"
	"github.com/zalando/signet/net"
	"github.com/zalando/signet/provider"
	"github.com/zalando/signet/provider/aliyun"
	"github.com/zalando/signet/provider/tencent"
)

// Options to create a Signet instance. Exactly one provider
// configuration must be set; it selects both the credential exchange
// and the message dispatch backend.
type Options struct {
	// Aliyun selects the Aliyun backend.
	Aliyun *aliyun.Options

	// Tencent selects the Tencent Cloud backend.
	Tencent *tencent.Options

	// Redis enables the shared credential cache. Without it every
	// FetchCredential call goes to the provider.
	Redis *net.RedisOptions

	// Client configures the HTTP transport shared by the provider
	// clients.
	Client net.Options

	// CredentialTTL is the lifetime requested from the provider,
	// defaults to one hour.
	CredentialTTL time.Duration

	// CacheNamespace, SafetyMargin, LockTTL and LockRetryDelay are
	// passed through to the credential cache.
	CacheNamespace string
	SafetyMargin   time.Duration
	LockTTL        time.Duration
	LockRetryDelay time.Duration

	// DisableLocking turns off the distributed single flight lock,
	// leaving a plain read-through cache.
	DisableLocking bool

	// Log, defaults to the logging package default.
	Log logging.Logger

	// Metrics, defaults to metrics.Default.
	Metrics metrics.Metrics
}

// Signet bundles a configured provider with the credential cache
// behind the two operations the engine exists for: obtaining a
// temporary credential and dispatching a notification.
type Signet struct {
	fetcher    provider.CredentialProvider
	dispatcher provider.MessageDispatcher
	cache      *credentials.Cache
	redis      *net.RedisRingClient
	client     *net.Client
	ttl        time.Duration
	log        logging.Logger
}

// New wires a Signet instance from the options.
func New(o Options) (*Signet, error) {
	if (o.Aliyun == nil) == (o.Tencent == nil) {
		return nil, errors.New("signet: exactly one provider configuration is required")
	}

	if o.CredentialTTL <= 0 {
		o.CredentialTTL = time.Hour
	}
	if o.Log == nil {
		o.Log = &logging.DefaultLog{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Default
	}

	client := net.NewClient(o.Client)

	var (
		fetcher    provider.CredentialProvider
		dispatcher provider.MessageDispatcher
		err        error
	)

	switch {
	case o.Aliyun != nil:
		po := *o.Aliyun
		if po.Client == nil {
			po.Client = client
		}
		if po.Log == nil {
			po.Log = o.Log
		}
		if po.Metrics == nil {
			po.Metrics = o.Metrics
		}

		var c *aliyun.Client
		c, err = aliyun.New(po)
		fetcher, dispatcher = c, c
	case o.Tencent != nil:
		po := *o.Tencent
		if po.Client == nil {
			po.Client = client
		}
		if po.Log == nil {
			po.Log = o.Log
		}
		if po.Metrics == nil {
			po.Metrics = o.Metrics
		}

		var c *tencent.Client
		c, err = tencent.New(po)
		fetcher, dispatcher = c, c
	}

	if err != nil {
		client.Close()
		return nil, err
	}

	s := &Signet{
		fetcher:    fetcher,
		dispatcher: dispatcher,
		client:     client,
		ttl:        o.CredentialTTL,
		log:        o.Log,
	}

	if o.Redis != nil {
		ro := *o.Redis
		if ro.Log == nil {
			ro.Log = o.Log
		}

		s.redis = net.NewRedisRingClient(&ro)
		var locker credentials.Locker
		if !o.DisableLocking {
			locker = s.redis
		}

		s.cache = credentials.New(credentials.Options{
			Store:          s.redis,
			Locker:         locker,
			Namespace:      o.CacheNamespace,
			SafetyMargin:   o.SafetyMargin,
			LockTTL:        o.LockTTL,
			LockRetryDelay: o.LockRetryDelay,
			Log:            o.Log,
			Metrics:        o.Metrics,
		})
	}

	return s, nil
}

// FetchCredential returns a temporary credential for the principal,
// served from the cache when one is configured and still valid.
func (s *Signet) FetchCredential(ctx context.Context, principal string) (*provider.Credential, error) {
	fetch := func(ctx context.Context) (*provider.Credential, error) {
		return s.fetcher.FetchCredential(ctx, principal, s.ttl)
	}

	if s.cache == nil {
		return fetch(ctx)
	}

	return s.cache.GetOrFetch(ctx, principal, fetch)
}

// SendMessage dispatches a templated notification to target.
func (s *Signet) SendMessage(ctx context.Context, target string, params map[string]string) (*provider.Receipt, error) {
	return s.dispatcher.SendMessage(ctx, target, params)
}

// InvalidateCredential drops the cached credential for the principal,
// forcing the next FetchCredential to the provider.
func (s *Signet) InvalidateCredential(ctx context.Context, principal string) error {
	if s.cache == nil {
		return nil
	}

	return s.cache.Invalidate(ctx, principal)
}

// Close releases the redis connections and the HTTP transport.
func (s *Signet) Close() {
	if s.redis != nil {
		s.redis.Close()
	}

	s.client.Close()
}
