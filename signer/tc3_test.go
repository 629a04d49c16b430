package signer

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"
)

var tc3TestTime = time.Unix(1714557600, 0) // 2024-05-01 10:00:00 UTC

func tc3TestSpec() *Spec {
	return &Spec{
		Method: "POST",
		Path:   "/",
		Headers: []Header{
			{Name: "content-type", Value: "application/json"},
			{Name: "host", Value: "sts.tencentcloudapi.com"},
		},
		Body: []byte(`{"Name":"role-A","DurationSeconds":7200}`),
		Time: tc3TestTime,
	}
}

func TestTC3CanonicalRequest(t *testing.T) {
	cr := TC3Signer{Service: "sts"}.CanonicalRequest(tc3TestSpec())

	want := "POST\n/\n\n" +
		"content-type:application/json\n" +
		"host:sts.tencentcloudapi.com\n" +
		"\n" +
		"content-type;host\n" +
		"9347eecac68eac602bb7cc888158d42ae56f86df526735edcc0904116d16ff75"
	if cr != want {
		t.Errorf("canonical request:\n%q\nwant:\n%q", cr, want)
	}
}

// The query line has its own canonicalization. Pinning it keeps the
// wire bytes stable independently of the query signing family's
// encoder.
func TestTC3CanonicalQueryLine(t *testing.T) {
	for _, tt := range []struct {
		name   string
		params map[string]string
		want   string
	}{
		{
			name: "empty for body requests",
		},
		{
			name:   "sorted and escaped",
			params: map[string]string{"Offset": "0", "Limit": "10", "Filter": "a b/c"},
			want:   "Filter=a%20b%2Fc&Limit=10&Offset=0",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := tc3CanonicalQuery(tt.params); got != tt.want {
				t.Errorf("canonical query = %q, want %q", got, tt.want)
			}
		})
	}

	spec := tc3TestSpec()
	spec.Params = map[string]string{"Limit": "10"}
	cr := TC3Signer{Service: "sts"}.CanonicalRequest(spec)
	if !strings.Contains(cr, "\nLimit=10\n") {
		t.Errorf("canonical request missing query line:\n%q", cr)
	}
}

func TestTC3StringToSign(t *testing.T) {
	sts := TC3Signer{Service: "sts"}.StringToSign(tc3TestSpec())

	want := "TC3-HMAC-SHA256\n1714557600\n2024-05-01/sts/tc3_request\n" +
		"120b705e52bac1c427401bd43735c0ed8f5e953c1f635d741f0f91ec57b2b682"
	if sts != want {
		t.Errorf("string to sign:\n%q\nwant:\n%q", sts, want)
	}
}

func TestTC3DeriveKeyDeterministic(t *testing.T) {
	ts := TC3Signer{Service: "sts"}

	k1 := ts.DeriveKey([]byte("testsecret"), "2024-05-01")
	k2 := ts.DeriveKey([]byte("testsecret"), "2024-05-01")
	if hex.EncodeToString(k1) != hex.EncodeToString(k2) {
		t.Error("derived key is not deterministic")
	}
	if want := "9764f9ee4e3dc630ac2a5f58152602a37ac71dcfb5da426ad89b803dad57bddb"; hex.EncodeToString(k1) != want {
		t.Errorf("derived key = %s, want %s", hex.EncodeToString(k1), want)
	}
}

func TestTC3SignVector(t *testing.T) {
	sig, err := TC3Signer{Service: "sts"}.Sign(tc3TestSpec(), []byte("testsecret"))
	if err != nil {
		t.Fatal(err)
	}
	if sig.Encoding != EncodingHex {
		t.Errorf("encoding = %v, want hex", sig.Encoding)
	}
	if want := "c7f656b611e6c8f7d857ba9cc74dc92e6f8ab070f013487104516926ce507322"; sig.Value != want {
		t.Errorf("signature = %q, want %q", sig.Value, want)
	}
}

// Changing any single derivation input must change the signature.
func TestTC3SignSensitivity(t *testing.T) {
	base, err := TC3Signer{Service: "sts"}.Sign(tc3TestSpec(), []byte("testsecret"))
	if err != nil {
		t.Fatal(err)
	}

	dateShifted := tc3TestSpec()
	dateShifted.Time = tc3TestTime.Add(24 * time.Hour)
	sig, err := TC3Signer{Service: "sts"}.Sign(dateShifted, []byte("testsecret"))
	if err != nil {
		t.Fatal(err)
	}
	if sig.Value == base.Value {
		t.Error("signature did not change with date")
	}
	if want := "8631d7e090435c779412c5617e26c6b9c03c02ff1c84b5dd9e464ab1758d9440"; sig.Value != want {
		t.Errorf("date shifted signature = %q, want %q", sig.Value, want)
	}

	sig, err = TC3Signer{Service: "sms"}.Sign(tc3TestSpec(), []byte("testsecret"))
	if err != nil {
		t.Fatal(err)
	}
	if sig.Value == base.Value {
		t.Error("signature did not change with service")
	}
	if want := "b5ea8f2f9cebe912fd3470624984482c7addff1e5414b4464a6c456a7e0033a0"; sig.Value != want {
		t.Errorf("sms service signature = %q, want %q", sig.Value, want)
	}

	body := tc3TestSpec()
	body.Body = []byte(`{"Name":"role-B","DurationSeconds":7200}`)
	sig, err = TC3Signer{Service: "sts"}.Sign(body, []byte("testsecret"))
	if err != nil {
		t.Fatal(err)
	}
	if sig.Value == base.Value {
		t.Error("signature did not change with body")
	}
}

func TestTC3Authorization(t *testing.T) {
	ts := TC3Signer{Service: "sms"}
	spec := &Spec{
		Method: "POST",
		Path:   "/",
		Headers: []Header{
			{Name: "content-type", Value: "application/json; charset=utf-8"},
			{Name: "host", Value: "sms.tencentcloudapi.com"},
			{Name: "x-tc-action", Value: "sendsms"},
		},
		Body: []byte(`{"PhoneNumberSet":["+8613711112222"],"SmsSdkAppId":"1400006666","SignName":"demo","TemplateId":"449739","TemplateParamSet":["1234"]}`),
		Time: tc3TestTime,
	}

	sig, err := ts.Sign(spec, []byte("testsecret"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "83d84266f1b116cd76239a75e590ab7e5f2ffb8cbb58594950ecef92488d9649"; sig.Value != want {
		t.Errorf("signature = %q, want %q", sig.Value, want)
	}

	auth := ts.Authorization("testid", spec, sig)
	want := "TC3-HMAC-SHA256 Credential=testid/2024-05-01/sms/tc3_request, " +
		"SignedHeaders=content-type;host;x-tc-action, Signature=" + sig.Value
	if auth != want {
		t.Errorf("authorization:\n%q\nwant:\n%q", auth, want)
	}
	if strings.Contains(auth, "testsecret") {
		t.Error("authorization leaks the secret")
	}
}
