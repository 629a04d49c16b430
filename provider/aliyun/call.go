package aliyun

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/zalando/signet/net"
	"github.com/zalando/signet/provider"
	"github.com/zalando/signet/signer"
)

// errorEnvelope is the error shape shared by the RPC APIs on non-2xx
// responses.
type errorEnvelope struct {
	Code      string `json:"Code"`
	Message   string `json:"Message"`
	RequestID string `json:"RequestId"`
	HostID    string `json:"HostId"`
}

// call signs the query, issues the GET request and returns the raw
// response body on 2xx. Any failure is mapped into the provider error
// taxonomy. Signed URLs never reach logs or error messages, the
// signature is derived from the secret.
func (c *Client) call(ctx context.Context, op, endpoint string, params map[string]string, secret []byte) ([]byte, error) {
	signedQuery, err := c.signer.SignedQuery(&signer.Spec{
		Method: "GET",
		Params: params,
	}, secret)
	if err != nil {
		return nil, &provider.SignatureError{Reason: "query signing failed", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"?"+signedQuery, nil)
	if err != nil {
		return nil, &provider.EncodingError{Op: op, Err: err}
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
		return nil, serviceError(rsp.StatusCode, body)
	}

	return body, nil
}

// serviceError decodes the provider's error envelope. When the body
// does not parse, the status and raw body are still preserved under a
// generic code so that callers never lose the provider's answer.
func serviceError(status int, body []byte) *provider.ServiceError {
	var e errorEnvelope
	if err := json.Unmarshal(body, &e); err != nil || e.Code == "" {
		return &provider.ServiceError{
			StatusCode: status,
			Code:       "UnknownError",
			RawBody:    string(body),
		}
	}

	return &provider.ServiceError{
		StatusCode: status,
		Code:       e.Code,
		Message:    e.Message,
		RequestID:  e.RequestID,
		HostID:     e.HostID,
		RawBody:    string(body),
	}
}
