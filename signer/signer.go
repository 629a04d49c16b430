/*
Package signer implements the request canonicalization and HMAC signing
schemes required by the cloud provider APIs that signet talks to, without
depending on any vendor SDK.

Two signing families exist and they are not interchangeable:

  - QuerySigner signs GET style requests with a single HMAC round over a
    canonical, percent-encoded query string ("Signature" query parameter).
  - TC3Signer signs POST style requests with a chained HMAC-SHA256 key
    derivation and renders the result into an Authorization header.

Signing is byte exact. A single ordering, encoding or hashing deviation
produces a request the provider rejects, so both code paths are kept
strictly separate even where they look similar.
*/
package signer

import (
	"time"
)

// Encoding tells how a Signature value is rendered on the wire.
type Encoding int

const (
	// EncodingBase64 is used by the query signing family.
	EncodingBase64 Encoding = iota
	// EncodingHex is used by the TC3 header signing family.
	EncodingHex
)

func (e Encoding) String() string {
	switch e {
	case EncodingBase64:
		return "base64"
	case EncodingHex:
		return "hex"
	}
	return "unknown"
}

// Header is a single header included in the signature. The Name must be
// lowercase, exactly as it appears in the signed header list.
type Header struct {
	Name  string
	Value string
}

// Spec describes one request to sign. A Spec is built fresh for every
// call and never reused, because nonces and timestamps must differ
// between calls.
type Spec struct {
	// Method is the HTTP method, uppercase.
	Method string

	// Path is the request URI path, usually "/".
	Path string

	// Params holds the query or common parameters, keys unique.
	Params map[string]string

	// Headers are the headers covered by the signature, in the order
	// they appear in the signed header list. Only the TC3 family uses
	// them.
	Headers []Header

	// Body is the request payload. Only the TC3 family hashes it.
	Body []byte

	// Time is the request timestamp used for signing.
	Time time.Time
}

// Signature is the rendered MAC. The raw value must never be logged:
// the signing secret feeds into it.
type Signature struct {
	Value    string
	Encoding Encoding
}

// Signer computes a Signature over a Spec. Implementations are pure:
// identical Spec and secret inputs yield identical signatures.
type Signer interface {
	Sign(spec *Spec, secret []byte) (Signature, error)
}
