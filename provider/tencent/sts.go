package tencent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zalando/signet/metrics"
	"github.com/zalando/signet/provider"
	"github.com/zalando/signet/signer"
)

type federationTokenRequest struct {
	Name            string `json:"Name"`
	Policy          string `json:"Policy,omitempty"`
	DurationSeconds int64  `json:"DurationSeconds,omitempty"`
}

type federationTokenResponse struct {
	Response struct {
		Credentials struct {
			Token        string `json:"Token"`
			TmpSecretID  string `json:"TmpSecretId"`
			TmpSecretKey string `json:"TmpSecretKey"`
			ExpiredTime  int64  `json:"ExpiredTime"`
		} `json:"Credentials"`
		RequestID string         `json:"RequestId"`
		Error     *responseError `json:"Error"`
	} `json:"Response"`
}

// FetchCredential exchanges the long lived signing key for a temporary
// federation token. The principal names the token, falling back to the
// configured default when empty. A non-positive ttl leaves the
// duration to the provider default.
func (c *Client) FetchCredential(ctx context.Context, principal string, ttl time.Duration) (*provider.Credential, error) {
	start := time.Now()
	name := principal
	if name == "" {
		name = c.federationName
	}

	payload, err := marshalPayload("getFederationToken", &federationTokenRequest{
		Name:            name,
		Policy:          c.policy,
		DurationSeconds: int64(ttl / time.Second),
	})
	if err != nil {
		return nil, err
	}

	headers := []signer.Header{
		{Name: "content-type", Value: "application/json"},
		{Name: "host", Value: endpointHost(c.stsEndpoint)},
	}

	body, err := c.call(ctx, "getFederationToken", c.stsEndpoint, stsService, "GetFederationToken", stsAPIVersion, headers, payload)
	if err != nil {
		c.metrics.IncCounter(metrics.KeyFetchFailure)
		return nil, err
	}

	var rsp federationTokenResponse
	if err := json.Unmarshal(body, &rsp); err != nil {
		c.metrics.IncCounter(metrics.KeyFetchFailure)
		return nil, &provider.DecodeError{RawBody: string(body), Err: err}
	}

	if rsp.Response.Error != nil {
		c.metrics.IncCounter(metrics.KeyFetchFailure)
		return nil, rsp.Response.Error.serviceError(rsp.Response.RequestID, body)
	}

	c.metrics.IncCounter(metrics.KeyFetch)
	c.metrics.MeasureSince(metrics.KeyFetch, start)
	c.log.Debugf("federation token issued for %s, request id %s", name, rsp.Response.RequestID)

	return &provider.Credential{
		AccessKeyID:     rsp.Response.Credentials.TmpSecretID,
		AccessKeySecret: rsp.Response.Credentials.TmpSecretKey,
		SessionToken:    rsp.Response.Credentials.Token,
		ExpiresAt:       time.Unix(rsp.Response.Credentials.ExpiredTime, 0),
	}, nil
}
