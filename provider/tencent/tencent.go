/*
Package tencent implements the Tencent Cloud provider clients:
temporary credential issuance through the STS GetFederationToken API
and notification dispatch through the SMS API. Both are JSON-over-POST
APIs authenticated with the TC3-HMAC-SHA256 header signature.
*/
package tencent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zalando/signet/logging"
	"github.com/zalando/signet/metrics"
	"github.com/zalando/signet/net"
	"github.com/zalando/signet/provider"
	"github.com/zalando/signet/secrets"
	"github.com/zalando/signet/signer"
)

const (
	// DefaultStsEndpoint is the credential exchange endpoint.
	DefaultStsEndpoint = "https://sts.tencentcloudapi.com/"

	// DefaultSmsEndpoint is the notification dispatch endpoint.
	DefaultSmsEndpoint = "https://sms.tencentcloudapi.com/"

	stsService    = "sts"
	stsAPIVersion = "2018-08-13"

	smsService    = "sms"
	smsAPIVersion = "2021-01-11"

	maxResponseBody = 1 << 20
)

// Options to create a tencent Client.
type Options struct {
	// SecretID is the public key id placed in the Authorization
	// credential scope, required.
	SecretID string

	// Secrets provides the signing secret, required. The secret is
	// read per request and never retained.
	Secrets secrets.SecretsReader

	// Region tags requests through the X-TC-Region header.
	Region string

	// FederationName is the federation token name used when the
	// caller passes an empty principal.
	FederationName string

	// Policy optionally restricts the issued credential.
	Policy string

	// SmsSdkAppID, SmsSignName and SmsTemplateID select the
	// registered SMS application, signature and template, required
	// for SendMessage.
	SmsSdkAppID   string
	SmsSignName   string
	SmsTemplateID string

	// StsEndpoint and SmsEndpoint override the provider endpoints,
	// mainly for tests.
	StsEndpoint string
	SmsEndpoint string

	// Client is the HTTP client, required.
	Client *net.Client

	// Log, defaults to the logging package default.
	Log logging.Logger

	// Metrics, defaults to metrics.Default.
	Metrics metrics.Metrics
}

// Client issues signed requests against the Tencent Cloud APIs. It
// implements provider.CredentialProvider and
// provider.MessageDispatcher.
type Client struct {
	secretID       string
	secrets        secrets.SecretsReader
	region         string
	federationName string
	policy         string
	smsSdkAppID    string
	smsSignName    string
	smsTemplateID  string
	stsEndpoint    string
	smsEndpoint    string
	client         *net.Client
	log            logging.Logger
	metrics        metrics.Metrics
	now            func() time.Time
}

// New creates a tencent Client from the options.
func New(o Options) (*Client, error) {
	if o.SecretID == "" {
		return nil, errors.New("tencent: secret id is required")
	}
	if o.Secrets == nil {
		return nil, errors.New("tencent: secrets reader is required")
	}
	if o.Client == nil {
		return nil, errors.New("tencent: http client is required")
	}
	if o.StsEndpoint == "" {
		o.StsEndpoint = DefaultStsEndpoint
	}
	if o.SmsEndpoint == "" {
		o.SmsEndpoint = DefaultSmsEndpoint
	}
	if o.Log == nil {
		o.Log = &logging.DefaultLog{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Default
	}

	return &Client{
		secretID:       o.SecretID,
		secrets:        o.Secrets,
		region:         o.Region,
		federationName: o.FederationName,
		policy:         o.Policy,
		smsSdkAppID:    o.SmsSdkAppID,
		smsSignName:    o.SmsSignName,
		smsTemplateID:  o.SmsTemplateID,
		stsEndpoint:    o.StsEndpoint,
		smsEndpoint:    o.SmsEndpoint,
		client:         o.Client,
		log:            o.Log,
		metrics:        o.Metrics,
		now:            time.Now,
	}, nil
}

// call signs and posts the payload against the endpoint and returns
// the raw response body on 2xx. The signed headers are exactly the
// ones passed in, in order. Authorization values never reach logs,
// the signature is derived from the secret.
func (c *Client) call(ctx context.Context, op, endpoint, service, action, version string, headers []signer.Header, payload []byte) ([]byte, error) {
	secret, ok := c.secrets.GetSecret(c.secretID)
	if !ok {
		return nil, &provider.SignatureError{Reason: "signing secret unavailable"}
	}

	ts := c.now()
	sg := signer.TC3Signer{Service: service}
	spec := &signer.Spec{
		Method:  "POST",
		Path:    "/",
		Headers: headers,
		Body:    payload,
		Time:    ts,
	}

	sig, err := sg.Sign(spec, secret)
	if err != nil {
		return nil, &provider.SignatureError{Reason: "request signing failed", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &provider.EncodingError{Op: op, Err: err}
	}

	for _, h := range headers {
		switch h.Name {
		case "host":
			req.Host = h.Value
		case "x-tc-action":
			// signed in lowercase, sent as X-TC-Action below
		default:
			req.Header.Set(h.Name, h.Value)
		}
	}

	req.Header.Set("Authorization", sg.Authorization(c.secretID, spec, sig))
	req.Header.Set("X-TC-Action", action)
	req.Header.Set("X-TC-Version", version)
	req.Header.Set("X-TC-Timestamp", strconv.FormatInt(ts.Unix(), 10))
	if c.region != "" {
		req.Header.Set("X-TC-Region", c.region)
	}

	rsp, err := c.client.Do(req)
	if err != nil {
		return nil, &provider.TransportError{Op: op, URL: endpoint, Err: err}
	}

	body, err := net.ReadBody(rsp, maxResponseBody)
	if err != nil {
		return nil, &provider.TransportError{Op: op, URL: endpoint, Err: err}
	}

	if rsp.StatusCode < http.StatusOK || rsp.StatusCode >= http.StatusMultipleChoices {
		return nil, &provider.ServiceError{
			StatusCode: rsp.StatusCode,
			Code:       "UnknownError",
			RawBody:    string(body),
		}
	}

	return body, nil
}

// endpointHost extracts the host for the signed host header.
func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}

	return u.Host
}

// responseError is the in-envelope error shape. The API reports
// application failures with HTTP 200 and this structure set.
type responseError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

func (e *responseError) serviceError(requestID string, body []byte) *provider.ServiceError {
	return &provider.ServiceError{
		StatusCode: http.StatusOK,
		Code:       e.Code,
		Message:    e.Message,
		RequestID:  requestID,
		RawBody:    string(body),
	}
}

func marshalPayload(op string, v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &provider.EncodingError{Op: op, Err: err}
	}

	return b, nil
}
