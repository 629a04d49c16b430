package signer

import (
	"crypto"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPercentEncode(t *testing.T) {
	for _, tt := range []struct {
		name string
		in   string
		want string
	}{
		{
			name: "unreserved passes through",
			in:   "AZaz09-_.~",
			want: "AZaz09-_.~",
		},
		{
			name: "space is %20 not plus",
			in:   "a b",
			want: "a%20b",
		},
		{
			name: "slash",
			in:   "/",
			want: "%2F",
		},
		{
			name: "asterisk",
			in:   "*",
			want: "%2A",
		},
		{
			name: "colon uppercase hex",
			in:   "2016-02-23T12:46:24Z",
			want: "2016-02-23T12%3A46%3A24Z",
		},
		{
			name: "multibyte utf8",
			in:   "验证",
			want: "%E9%AA%8C%E8%AF%81",
		},
		{
			name: "plus and equals",
			in:   "a+b=c",
			want: "a%2Bb%3Dc",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := PercentEncode(tt.in); got != tt.want {
				t.Errorf("PercentEncode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalQuerySortedAndRoundTrips(t *testing.T) {
	params := map[string]string{
		"Action":          "AssumeRole",
		"Version":         "2015-04-01",
		"RoleArn":         "acs:ram::123:role/demo",
		"Timestamp":       "2024-05-01T10:00:00Z",
		"SignatureNonce":  "a b c",
		"AccessKeyId":     "testid",
		"DurationSeconds": "3600",
		"Tag":             "x",
		"Tag.1":           "y",
	}

	cq := CanonicalQuery(params)

	keys := make([]string, 0, len(params))
	for _, pair := range strings.Split(cq, "&") {
		keys = append(keys, strings.SplitN(pair, "=", 2)[0])
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Errorf("canonical keys not strictly ascending: %q >= %q", keys[i-1], keys[i])
		}
	}

	decoded, err := url.ParseQuery(cq)
	if err != nil {
		t.Fatalf("canonical query does not parse: %v", err)
	}
	got := make(map[string]string, len(decoded))
	for k, vs := range decoded {
		got[k] = vs[0]
	}
	if d := cmp.Diff(params, got); d != "" {
		t.Errorf("canonical query does not round trip (-want +got):\n%s", d)
	}
}

// Prefix keys like "Tag"/"Tag.1" expose the difference between sorting
// keys and sorting joined "key=value" pairs: '.' sorts before '=', so
// the pair sort would put "Tag.1" first and the provider would reject
// the signature.
func TestCanonicalQueryPrefixKeys(t *testing.T) {
	cq := CanonicalQuery(map[string]string{
		"Tag":       "b",
		"Tag.1":     "a",
		"Tag.1.Key": "c",
		"Tag.2":     "d",
	})

	if want := "Tag=b&Tag.1=a&Tag.1.Key=c&Tag.2=d"; cq != want {
		t.Errorf("canonical query = %q, want %q", cq, want)
	}
}

// The reference vector published with the provider's signing
// documentation: key "testid"/"testsecret", fixed nonce and timestamp.
func TestQuerySignPublishedVector(t *testing.T) {
	spec := &Spec{
		Method: "GET",
		Params: map[string]string{
			"Action":           "DescribeRegions",
			"Version":          "2014-05-26",
			"AccessKeyId":      "testid",
			"SignatureMethod":  "HMAC-SHA1",
			"Timestamp":        "2016-02-23T12:46:24Z",
			"SignatureVersion": "1.0",
			"SignatureNonce":   "3ee8c1b8-83d3-44af-a94f-4e0ad82fd6cf",
			"Format":           "XML",
		},
	}

	sig, err := QuerySigner{}.Sign(spec, []byte("testsecret"))
	if err != nil {
		t.Fatal(err)
	}
	if sig.Encoding != EncodingBase64 {
		t.Errorf("encoding = %v, want base64", sig.Encoding)
	}
	if want := "OLeaidS1JvxuMvnyHOwuJ+uX5qY="; sig.Value != want {
		t.Errorf("signature = %q, want %q", sig.Value, want)
	}
}

func TestQuerySignAssumeRoleVector(t *testing.T) {
	spec := &Spec{
		Method: "GET",
		Params: map[string]string{
			"Action":           "AssumeRole",
			"Version":          "2015-04-01",
			"Format":           "JSON",
			"SignatureVersion": "1.0",
			"SignatureMethod":  "HMAC-SHA1",
			"AccessKeyId":      "testid",
			"Timestamp":        "2024-05-01T10:00:00Z",
			"SignatureNonce":   "6a7d58f0-1f3a-4c6f-9cbb-3f2d6e1a9c01",
			"RoleArn":          "acs:ram::123456789012:role/demo",
			"RoleSessionName":  "session-demo",
			"DurationSeconds":  "3600",
		},
	}
	secret := []byte("testsecret")

	sig, err := QuerySigner{}.Sign(spec, secret)
	if err != nil {
		t.Fatal(err)
	}
	if want := "fL86RJbacqTgL3jgqJ4f7VL4LTM="; sig.Value != want {
		t.Errorf("sha1 signature = %q, want %q", sig.Value, want)
	}

	sig256, err := QuerySigner{Hash: crypto.SHA256}.Sign(spec, secret)
	if err != nil {
		t.Fatal(err)
	}
	if want := "uOQFwlpNUonVPmm5NroHB2RP0w/W2HNNtKkq0gl+PVo="; sig256.Value != want {
		t.Errorf("sha256 signature = %q, want %q", sig256.Value, want)
	}

	signed, err := QuerySigner{}.SignedQuery(spec, secret)
	if err != nil {
		t.Fatal(err)
	}
	if want := "&Signature=fL86RJbacqTgL3jgqJ4f7VL4LTM%3D"; !strings.HasSuffix(signed, want) {
		t.Errorf("signed query %q does not end with %q", signed, want)
	}
	if !strings.HasPrefix(signed, "AccessKeyId=testid&Action=AssumeRole&") {
		t.Errorf("signed query not in canonical order: %q", signed)
	}
}

func TestQuerySignUnsupportedHash(t *testing.T) {
	_, err := QuerySigner{Hash: crypto.MD5}.Sign(&Spec{Method: "GET"}, []byte("s"))
	if err == nil {
		t.Error("expected error for unsupported hash")
	}
}

func TestStringToSignUsesLiteralSlash(t *testing.T) {
	sts := StringToSign("GET", "a=b")
	if want := "GET&%2F&a%3Db"; sts != want {
		t.Errorf("string to sign = %q, want %q", sts, want)
	}
}
