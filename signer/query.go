package signer

import (
	"crypto"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"sort"
	"strings"
)

// encodedSlash is the percent-encoded path separator used in the string
// to sign. It is a literal constant on purpose: the path must encode to
// exactly "%2F" and must not be routed through PercentEncode, because
// some providers special-case the separator.
const encodedSlash = "%2F"

// QuerySigner implements the GET query signing family: a single HMAC
// round over "METHOD&%2F&<encoded canonical query>", base64 encoded and
// appended to the query string as the Signature parameter.
type QuerySigner struct {
	// Hash selects the MAC hash. Zero value means crypto.SHA1, which
	// is what the Aliyun RPC family uses.
	Hash crypto.Hash
}

// PercentEncode encodes s following the RFC 3986 unreserved character
// rules the providers require: A-Za-z0-9 and -_.~ pass through,
// everything else becomes %XX with uppercase hex. Space encodes to %20,
// never to '+'.
func PercentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}

// CanonicalQuery builds the canonical query string: every key and value
// percent-encoded, pairs sorted lexicographically by encoded key and
// joined with '&' and '='. The sort must compare keys alone: comparing
// joined "key=value" pairs misorders prefix keys like "Tag" and
// "Tag.1", because '.' sorts before '='.
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, PercentEncode(k))
	}
	sort.Strings(keys)

	encoded := make(map[string]string, len(params))
	for k, v := range params {
		encoded[PercentEncode(k)] = PercentEncode(v)
	}

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(encoded[k])
	}
	return b.String()
}

// StringToSign renders the Variant A signing input for the given method
// and canonical query string.
func StringToSign(method, canonicalQuery string) string {
	return method + "&" + encodedSlash + "&" + PercentEncode(canonicalQuery)
}

func (qs QuerySigner) newHash() (func() hash.Hash, error) {
	switch qs.Hash {
	case 0, crypto.SHA1:
		return sha1.New, nil
	case crypto.SHA256:
		return sha256.New, nil
	}
	return nil, fmt.Errorf("unsupported query signing hash: %v", qs.Hash)
}

// Sign computes the query signature over spec.Method and spec.Params.
// The MAC key is the secret with a trailing '&', as the scheme
// requires.
func (qs QuerySigner) Sign(spec *Spec, secret []byte) (Signature, error) {
	newHash, err := qs.newHash()
	if err != nil {
		return Signature{}, err
	}

	sts := StringToSign(spec.Method, CanonicalQuery(spec.Params))

	key := make([]byte, 0, len(secret)+1)
	key = append(key, secret...)
	key = append(key, '&')

	mac := hmac.New(newHash, key)
	mac.Write([]byte(sts))

	return Signature{
		Value:    base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		Encoding: EncodingBase64,
	}, nil
}

// SignedQuery returns the full query string to send: the canonical
// query with the percent-encoded signature appended. The result is
// ready to be joined to the endpoint with '?'.
func (qs QuerySigner) SignedQuery(spec *Spec, secret []byte) (string, error) {
	sig, err := qs.Sign(spec, secret)
	if err != nil {
		return "", err
	}
	return CanonicalQuery(spec.Params) + "&Signature=" + PercentEncode(sig.Value), nil
}
