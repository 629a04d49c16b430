/*
Package captcha implements one time verification codes delivered over
SMS. A code is six decimal digits drawn from crypto/rand, stored under
the receiving account with a bounded lifetime, and checked at most
once: validation consumes the entry on success and discards it on a
wrong guess.
*/
package captcha

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/zalando/signet/credentials"
	"github.com/zalando/signet/logging"
	"github.com/zalando/signet/provider"
)

const (
	// DefaultTTL is how long a generated code stays valid.
	DefaultTTL = 5 * time.Minute

	// DefaultKeyPrefix namespaces code entries in the store.
	DefaultKeyPrefix = "signet:captcha:"

	codeDigits = 6
)

var (
	// ErrNotFound is returned when no code is stored for the
	// account, or the stored one already expired.
	ErrNotFound = errors.New("captcha: no code for account")

	// ErrMismatch is returned on a wrong guess. The stored code is
	// discarded, a new one has to be requested.
	ErrMismatch = errors.New("captcha: code mismatch")

	codeBound = big.NewInt(1000000)
)

// Options to create a captcha Service.
type Options struct {
	// Store holds pending codes, required.
	Store credentials.Store

	// Dispatcher delivers the code to the account, required unless
	// Debug is set.
	Dispatcher provider.MessageDispatcher

	// ParamName is the template parameter carrying the code,
	// defaults to "code".
	ParamName string

	// TTL bounds the code lifetime, defaults to DefaultTTL.
	TTL time.Duration

	// KeyPrefix namespaces store entries, defaults to
	// DefaultKeyPrefix.
	KeyPrefix string

	// Debug stores generated codes without dispatching them. Meant
	// for test environments without an SMS contract.
	Debug bool

	// Log, defaults to the logging package default.
	Log logging.Logger
}

// Service issues and validates one time codes.
type Service struct {
	store      credentials.Store
	dispatcher provider.MessageDispatcher
	paramName  string
	ttl        time.Duration
	keyPrefix  string
	debug      bool
	log        logging.Logger
	generate   func() (string, error)
}

// New creates a captcha Service from the options.
func New(o Options) (*Service, error) {
	if o.Store == nil {
		return nil, errors.New("captcha: store is required")
	}
	if o.Dispatcher == nil && !o.Debug {
		return nil, errors.New("captcha: dispatcher is required")
	}
	if o.ParamName == "" {
		o.ParamName = "code"
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = DefaultKeyPrefix
	}
	if o.Log == nil {
		o.Log = &logging.DefaultLog{}
	}

	return &Service{
		store:      o.Store,
		dispatcher: o.Dispatcher,
		paramName:  o.ParamName,
		ttl:        o.TTL,
		keyPrefix:  o.KeyPrefix,
		debug:      o.Debug,
		log:        o.Log,
		generate:   generateCode,
	}, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeBound)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", codeDigits, n), nil
}

func (s *Service) key(account string) string {
	return s.keyPrefix + account
}

// Send generates a fresh code for the account, stores it and
// dispatches it. A pending code for the same account is replaced. In
// debug mode the code is stored but not dispatched. The code itself is
// never logged.
func (s *Service) Send(ctx context.Context, account string) (*provider.Receipt, error) {
	code, err := s.generate()
	if err != nil {
		return nil, err
	}

	if err := s.store.SetWithTTL(ctx, s.key(account), code, s.ttl); err != nil {
		return nil, err
	}

	if s.debug {
		s.log.Debugf("captcha stored without dispatch for %s", account)
		return &provider.Receipt{Target: account}, nil
	}

	rcpt, err := s.dispatcher.SendMessage(ctx, account, map[string]string{s.paramName: code})
	if err != nil {
		// drop the stored code so an undelivered code cannot be
		// guessed against
		if derr := s.store.Delete(ctx, s.key(account)); derr != nil {
			s.log.Errorf("failed to drop undelivered captcha for %s: %v", account, derr)
		}

		return nil, err
	}

	s.log.Infof("captcha dispatched to %s, request id %s", account, rcpt.RequestID)
	return rcpt, nil
}

// Validate compares code against the stored one. A match with consume
// set removes the entry. A wrong guess always removes it, each code
// survives exactly one comparison.
func (s *Service) Validate(ctx context.Context, account, code string, consume bool) error {
	stored, ok, err := s.store.Get(ctx, s.key(account))
	if err != nil {
		return err
	}

	if !ok {
		return ErrNotFound
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		if err := s.store.Delete(ctx, s.key(account)); err != nil {
			s.log.Errorf("failed to drop captcha for %s after mismatch: %v", account, err)
		}

		return ErrMismatch
	}

	if consume {
		if err := s.store.Delete(ctx, s.key(account)); err != nil {
			return err
		}
	}

	return nil
}
