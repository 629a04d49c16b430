package secrets

import (
	"bytes"
	"testing"
)

type mapSecret map[string][]byte

func (m mapSecret) GetSecret(k string) ([]byte, bool) {
	b, ok := m[k]
	return b, ok
}
func (mapSecret) Close() {}

func TestStaticSecret(t *testing.T) {
	sec := StaticSecret("mysecret")
	b, ok := sec.GetSecret("ignored")
	if !ok {
		t.Fatal("expected to find secret")
	}
	if !bytes.Equal(b, []byte("mysecret")) {
		t.Errorf("got %q", b)
	}
	sec.Close()
}

func TestStaticDelegateSecret(t *testing.T) {
	m := mapSecret{"aliyun": []byte("sk1")}
	sds := NewStaticDelegateSecret(m, "aliyun")

	b, ok := sds.GetSecret("something-else")
	if !ok || string(b) != "sk1" {
		t.Errorf("got %q, %v", b, ok)
	}

	sds = NewStaticDelegateSecret(m, "missing")
	if _, ok := sds.GetSecret(""); ok {
		t.Error("expected miss for unknown key")
	}
	sds.Close()
}
