/*
Package provider defines the types shared by the cloud provider clients:
the temporary credential and dispatch receipt results, the client
interfaces, and the error taxonomy every failure path maps into.
*/
package provider

import (
	"context"
	"time"
)

// Credential is a short lived access credential issued by a provider.
// It is immutable once issued: consumers always receive a copy, never a
// shared reference. ExpiresAt is a point in absolute time, so consumers
// never need provider specific clock math.
type Credential struct {
	AccessKeyID     string    `json:"accessKeyId"`
	AccessKeySecret string    `json:"accessKeySecret"`
	SessionToken    string    `json:"sessionToken,omitempty"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// TTL returns the remaining lifetime relative to now, zero when
// expired.
func (c *Credential) TTL(now time.Time) time.Duration {
	d := c.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Expired reports whether the credential is unusable at now, applying
// the given safety margin.
func (c *Credential) Expired(now time.Time, margin time.Duration) bool {
	return !now.Add(margin).Before(c.ExpiresAt)
}

// Clone returns an independent copy.
func (c *Credential) Clone() *Credential {
	cc := *c
	return &cc
}

// Receipt is the acknowledgement returned by a notification dispatch
// call.
type Receipt struct {
	// RequestID identifies the provider side request for diagnosis.
	RequestID string

	// MessageID is the provider assigned message identifier, when the
	// provider reports one.
	MessageID string

	// Target is the destination the message was accepted for.
	Target string

	// Code and Message echo the provider's per message status.
	Code    string
	Message string
}

// CredentialProvider issues temporary credentials for a principal. The
// requested ttl is advisory: the provider reports the effective expiry
// in the credential.
type CredentialProvider interface {
	FetchCredential(ctx context.Context, principal string, ttl time.Duration) (*Credential, error)
}

// MessageDispatcher sends a templated notification to a target.
type MessageDispatcher interface {
	SendMessage(ctx context.Context, target string, params map[string]string) (*Receipt, error)
}
