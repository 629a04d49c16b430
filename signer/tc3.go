package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// tc3Algorithm is the algorithm name in the string to sign and the
	// Authorization header.
	tc3Algorithm = "TC3-HMAC-SHA256"

	// tc3KeyPrefix prefixes the secret at the start of the key
	// derivation chain.
	tc3KeyPrefix = "TC3"

	// tc3RequestSuffix terminates the credential scope and the key
	// derivation chain.
	tc3RequestSuffix = "tc3_request"

	// tc3DateFormat is the UTC date in the credential scope.
	tc3DateFormat = "2006-01-02"
)

// TC3Signer implements the POST header signing family: a canonical
// request is hashed into a string to sign, the signing key is derived
// by chaining HMAC-SHA256 over date, service and a fixed suffix, and
// the hex signature is rendered into an Authorization header.
type TC3Signer struct {
	// Service is the provider service name in the credential scope,
	// e.g. "sts" or "sms".
	Service string
}

// CanonicalRequest builds the canonical request string from the spec:
// method, URI, query string, one line per signed header, a blank line,
// the signed header name list and the hex SHA256 of the body. The
// header lines and the name list must match exactly what is sent.
func (ts TC3Signer) CanonicalRequest(spec *Spec) string {
	var b strings.Builder
	b.WriteString(spec.Method)
	b.WriteByte('\n')
	b.WriteString(spec.Path)
	b.WriteByte('\n')
	b.WriteString(tc3CanonicalQuery(spec.Params))
	b.WriteByte('\n')
	for _, h := range spec.Headers {
		b.WriteString(h.Name)
		b.WriteByte(':')
		b.WriteString(h.Value)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(ts.SignedHeaders(spec))
	b.WriteByte('\n')
	b.WriteString(hexSHA256(spec.Body))
	return b.String()
}

// SignedHeaders returns the semicolon-joined signed header name list.
func (TC3Signer) SignedHeaders(spec *Spec) string {
	names := make([]string, len(spec.Headers))
	for i, h := range spec.Headers {
		names[i] = h.Name
	}
	return strings.Join(names, ";")
}

// StringToSign renders the second stage signing input: algorithm name,
// unix timestamp, credential scope and the hashed canonical request.
func (ts TC3Signer) StringToSign(spec *Spec) string {
	var b strings.Builder
	b.WriteString(tc3Algorithm)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(spec.Time.Unix(), 10))
	b.WriteByte('\n')
	b.WriteString(ts.scope(spec))
	b.WriteByte('\n')
	b.WriteString(hexSHA256([]byte(ts.CanonicalRequest(spec))))
	return b.String()
}

// DeriveKey chains the HMAC key derivation for the given date:
// k_date = HMAC("TC3"+secret, date), k_service = HMAC(k_date, service),
// k_signing = HMAC(k_service, "tc3_request"). Deterministic for fixed
// inputs; changing any input changes every later signature.
func (ts TC3Signer) DeriveKey(secret []byte, date string) []byte {
	prefixed := make([]byte, 0, len(tc3KeyPrefix)+len(secret))
	prefixed = append(prefixed, tc3KeyPrefix...)
	prefixed = append(prefixed, secret...)

	kDate := hmacSHA256(prefixed, []byte(date))
	kService := hmacSHA256(kDate, []byte(ts.Service))
	return hmacSHA256(kService, []byte(tc3RequestSuffix))
}

// Sign computes the hex TC3 signature over the spec.
func (ts TC3Signer) Sign(spec *Spec, secret []byte) (Signature, error) {
	key := ts.DeriveKey(secret, spec.Time.UTC().Format(tc3DateFormat))
	mac := hmacSHA256(key, []byte(ts.StringToSign(spec)))
	return Signature{
		Value:    hex.EncodeToString(mac),
		Encoding: EncodingHex,
	}, nil
}

// Authorization renders the Authorization header value for a computed
// signature.
func (ts TC3Signer) Authorization(keyID string, spec *Spec, sig Signature) string {
	var b strings.Builder
	b.WriteString(tc3Algorithm)
	b.WriteString(" Credential=")
	b.WriteString(keyID)
	b.WriteByte('/')
	b.WriteString(ts.scope(spec))
	b.WriteString(", SignedHeaders=")
	b.WriteString(ts.SignedHeaders(spec))
	b.WriteString(", Signature=")
	b.WriteString(sig.Value)
	return b.String()
}

func (ts TC3Signer) scope(spec *Spec) string {
	return spec.Time.UTC().Format(tc3DateFormat) + "/" + ts.Service + "/" + tc3RequestSuffix
}

// tc3CanonicalQuery renders the query string line of the canonical
// request: keys sorted, keys and values escaped. The two signing
// families canonicalize independently, this must not call into the
// query signing family's encoder.
func tc3CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(tc3Escape(k))
		b.WriteByte('=')
		b.WriteString(tc3Escape(params[k]))
	}
	return b.String()
}

// tc3Escape percent-encodes everything outside the RFC 3986 unreserved
// set with uppercase hex, space included.
func tc3Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
