/*
Package aliyun implements the Aliyun provider clients: temporary
credential issuance through the STS AssumeRole API and notification
dispatch through the SMS API. Both APIs belong to the same RPC family
and share the GET query signing scheme (HMAC-SHA1 over a canonical
query string), so one client carries both operations.
*/
package aliyun

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zalando/signet/logging"
	"github.com/zalando/signet/metrics"
	"github.com/zalando/signet/net"
	"github.com/zalando/signet/secrets"
	"github.com/zalando/signet/signer"
)

const (
	// DefaultStsEndpoint is the credential exchange endpoint.
	DefaultStsEndpoint = "https://sts.aliyuncs.com/"

	// DefaultSmsEndpoint is the notification dispatch endpoint.
	DefaultSmsEndpoint = "https://dysmsapi.aliyuncs.com/"

	stsAPIVersion = "2015-04-01"
	smsAPIVersion = "2017-05-25"

	signVersion    = "1.0"
	signMethod     = "HMAC-SHA1"
	responseFormat = "JSON"

	// timestampFormat is ISO-8601 UTC with second precision and Z
	// suffix, as the signature scheme requires.
	timestampFormat = "2006-01-02T15:04:05Z"

	// maxResponseBody bounds how much of a provider response is read.
	maxResponseBody = 1 << 20
)

// Options to create an aliyun Client.
type Options struct {
	// AccessKeyID is the public key id included in every signed
	// request, required.
	AccessKeyID string

	// Secrets provides the signing secret, required. The secret is
	// read per request and never retained.
	Secrets secrets.SecretsReader

	// RoleArn is the role assumed by FetchCredential, required for
	// credential issuance.
	RoleArn string

	// RoleSessionName is the session name used when the caller
	// passes an empty principal.
	RoleSessionName string

	// RegionID tags SMS requests, defaults to "cn-hangzhou".
	RegionID string

	// SmsSignName and SmsTemplateCode select the registered SMS
	// signature and template, required for SendMessage.
	SmsSignName     string
	SmsTemplateCode string

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

// Client issues signed requests against the Aliyun RPC APIs. It
// implements provider.CredentialProvider and
// provider.MessageDispatcher.
type Client struct {
	accessKeyID     string
	secrets         secrets.SecretsReader
	roleArn         string
	roleSessionName string
	regionID        string
	smsSignName     string
	smsTemplateCode string
	stsEndpoint     string
	smsEndpoint     string
	client          *net.Client
	signer          signer.QuerySigner
	log             logging.Logger
	metrics         metrics.Metrics
	now             func() time.Time
	nonce           func() string
}

// New creates an aliyun Client from the options.
func New(o Options) (*Client, error) {
	if o.AccessKeyID == "" {
		return nil, errors.New("aliyun: access key id is required")
	}
	if o.Secrets == nil {
		return nil, errors.New("aliyun: secrets reader is required")
	}
	if o.Client == nil {
		return nil, errors.New("aliyun: http client is required")
	}
	if o.StsEndpoint == "" {
		o.StsEndpoint = DefaultStsEndpoint
	}
	if o.SmsEndpoint == "" {
		o.SmsEndpoint = DefaultSmsEndpoint
	}
	if o.RegionID == "" {
		o.RegionID = "cn-hangzhou"
	}
	if o.Log == nil {
		o.Log = &logging.DefaultLog{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Default
	}

	return &Client{
		accessKeyID:     o.AccessKeyID,
		secrets:         o.Secrets,
		roleArn:         o.RoleArn,
		roleSessionName: o.RoleSessionName,
		regionID:        o.RegionID,
		smsSignName:     o.SmsSignName,
		smsTemplateCode: o.SmsTemplateCode,
		stsEndpoint:     o.StsEndpoint,
		smsEndpoint:     o.SmsEndpoint,
		client:          o.Client,
		log:             o.Log,
		metrics:         o.Metrics,
		now:             time.Now,
		nonce:           uuid.NewString,
	}, nil
}

// commonParams returns the fixed request metadata merged into every
// signed call: signature version and method, response format, key id,
// a unique nonce and the current UTC timestamp.
func (c *Client) commonParams(action, version string) map[string]string {
	return map[string]string{
		"Action":           action,
		"Version":          version,
		"Format":           responseFormat,
		"SignatureVersion": signVersion,
		"SignatureMethod":  signMethod,
		"AccessKeyId":      c.accessKeyID,
		"SignatureNonce":   c.nonce(),
		"Timestamp":        c.now().UTC().Format(timestampFormat),
	}
}
