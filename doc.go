/*
Package signet implements request signing and temporary credential
issuance for Aliyun and Tencent Cloud.

It consists of the signing primitives and a thin service layer:

  - signer canonicalizes and signs requests, either as a GET query
    string signature (HMAC-SHA1 or HMAC-SHA256 over a canonical,
    percent-encoded query) or as a TC3-HMAC-SHA256 Authorization
    header over a hashed POST body,
  - provider defines the credential and receipt model and the error
    taxonomy shared by the clients,
  - provider/aliyun and provider/tencent exchange a long lived signing
    key for short lived credentials and dispatch SMS notifications,
  - credentials caches issued credentials in redis with a safety
    margin before expiry and a distributed lock that lets exactly one
    instance refresh an expired entry,
  - captcha issues and validates one time SMS codes on top of the
    same store and dispatcher.

The root package wires these together behind a small facade:

	s, err := signet.New(signet.Options{
		Aliyun: &aliyun.Options{
			AccessKeyID: id,
			Secrets:     secrets.StaticSecret(key),
			RoleArn:     arn,
		},
		Redis: &net.RedisOptions{Addrs: []string{"localhost:6379"}},
	})
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	cred, err := s.FetchCredential(ctx, "session-name")

Secrets stay inside the signers: neither the signing key nor anything
derived from it, signatures and signed URLs included, is ever written
to logs.
*/
package signet
