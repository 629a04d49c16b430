// Package secrets provides the SecretsReader interface signet
// components use to obtain signing secrets, together with simple
// implementations for static configuration.
package secrets

// SecretsReader is able to get a secret
type SecretsReader interface {
	// GetSecret finds secret by name and returns secret and if found or not
	GetSecret(string) ([]byte, bool)
	// Close should be used on teardown to cleanup a refresher
	// goroutine. Callers don't need a nil check.
	Close()
}

// StaticSecret implements SecretsReader interface. Example:
//
//	sec := []byte("mysecret")
//	sss := StaticSecret(sec)
//	b, _ := sss.GetSecret("")
//	string(b) == sec // true
type StaticSecret []byte

// GetSecret returns the static secret
func (st StaticSecret) GetSecret(string) ([]byte, bool) {
	return st, true
}

// Close implements SecretsReader.
func (st StaticSecret) Close() {}

// StaticDelegateSecret delegates with a static string to the wrapped
// SecretsReader
type StaticDelegateSecret struct {
	sr  SecretsReader
	key string
}

// NewStaticDelegateSecret creates a wrapped SecretsReader, that uses
// the given key with the underlying SecretsReader to return the
// secret.
func NewStaticDelegateSecret(sr SecretsReader, s string) *StaticDelegateSecret {
	return &StaticDelegateSecret{
		sr:  sr,
		key: s,
	}
}

// GetSecret returns the secret looked up by the static key via the
// delegated SecretsReader.
func (sds *StaticDelegateSecret) GetSecret(string) ([]byte, bool) {
	return sds.sr.GetSecret(sds.key)
}

// Close delegates to the wrapped SecretsReader.
func (sds *StaticDelegateSecret) Close() {
	sds.sr.Close()
}
