package aliyun

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/zalando/signet/metrics"
	"github.com/zalando/signet/provider"
)

type assumeRoleResponse struct {
	RequestID   string `json:"RequestId"`
	Credentials struct {
		AccessKeyID     string `json:"AccessKeyId"`
		AccessKeySecret string `json:"AccessKeySecret"`
		SecurityToken   string `json:"SecurityToken"`
		Expiration      string `json:"Expiration"`
	} `json:"Credentials"`
	AssumedRoleUser struct {
		Arn           string `json:"Arn"`
		AssumedRoleID string `json:"AssumedRoleId"`
	} `json:"AssumedRoleUser"`
}

// FetchCredential exchanges the long lived signing key for a temporary
// credential scoped to the configured role. The principal becomes the
// role session name, falling back to the configured default when
// empty. A non-positive ttl requests the provider default of one hour.
func (c *Client) FetchCredential(ctx context.Context, principal string, ttl time.Duration) (*provider.Credential, error) {
	start := time.Now()
	secret, ok := c.secrets.GetSecret(c.accessKeyID)
	if !ok {
		return nil, &provider.SignatureError{Reason: "signing secret unavailable"}
	}

	sessionName := principal
	if sessionName == "" {
		sessionName = c.roleSessionName
	}

	if ttl <= 0 {
		ttl = time.Hour
	}

	params := c.commonParams("AssumeRole", stsAPIVersion)
	params["RoleArn"] = c.roleArn
	params["RoleSessionName"] = sessionName
	params["DurationSeconds"] = strconv.Itoa(int(ttl / time.Second))

	body, err := c.call(ctx, "assumeRole", c.stsEndpoint, params, secret)
	if err != nil {
		c.metrics.IncCounter(metrics.KeyFetchFailure)
		return nil, err
	}

	var rsp assumeRoleResponse
	if err := json.Unmarshal(body, &rsp); err != nil {
		c.metrics.IncCounter(metrics.KeyFetchFailure)
		return nil, &provider.DecodeError{RawBody: string(body), Err: err}
	}

	expiresAt, err := time.Parse(time.RFC3339, rsp.Credentials.Expiration)
	if err != nil {
		c.metrics.IncCounter(metrics.KeyFetchFailure)
		return nil, &provider.DecodeError{RawBody: string(body), Err: err}
	}

	c.metrics.IncCounter(metrics.KeyFetch)
	c.metrics.MeasureSince(metrics.KeyFetch, start)
	c.log.Debugf("assumed role for session %s, request id %s", sessionName, rsp.RequestID)

	return &provider.Credential{
		AccessKeyID:     rsp.Credentials.AccessKeyID,
		AccessKeySecret: rsp.Credentials.AccessKeySecret,
		SessionToken:    rsp.Credentials.SecurityToken,
		ExpiresAt:       expiresAt,
	}, nil
}
