package aliyun

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zalando/signet/metrics"
	"github.com/zalando/signet/provider"
)

const smsSuccessCode = "OK"

type sendSmsResponse struct {
	Code      string `json:"Code"`
	Message   string `json:"Message"`
	RequestID string `json:"RequestId"`
	BizID     string `json:"BizId"`
}

// SendMessage dispatches a templated SMS to target. The params map is
// serialized as the template parameter document. The API reports
// application level failures with HTTP 200 and a non-OK code, those
// are mapped to a ServiceError like any other provider rejection.
func (c *Client) SendMessage(ctx context.Context, target string, params map[string]string) (*provider.Receipt, error) {
	start := time.Now()
	secret, ok := c.secrets.GetSecret(c.accessKeyID)
	if !ok {
		return nil, &provider.SignatureError{Reason: "signing secret unavailable"}
	}

	templateParam, err := json.Marshal(params)
	if err != nil {
		return nil, &provider.EncodingError{Op: "sendSms", Err: err}
	}

	query := c.commonParams("SendSms", smsAPIVersion)
	query["RegionId"] = c.regionID
	query["PhoneNumbers"] = target
	query["SignName"] = c.smsSignName
	query["TemplateCode"] = c.smsTemplateCode
	query["TemplateParam"] = string(templateParam)

	body, err := c.call(ctx, "sendSms", c.smsEndpoint, query, secret)
	if err != nil {
		c.metrics.IncCounter(metrics.KeyDispatchFailure)
		return nil, err
	}

	var rsp sendSmsResponse
	if err := json.Unmarshal(body, &rsp); err != nil {
		c.metrics.IncCounter(metrics.KeyDispatchFailure)
		return nil, &provider.DecodeError{RawBody: string(body), Err: err}
	}

	if rsp.Code != smsSuccessCode {
		c.metrics.IncCounter(metrics.KeyDispatchFailure)
		return nil, &provider.ServiceError{
			StatusCode: http.StatusOK,
			Code:       rsp.Code,
			Message:    rsp.Message,
			RequestID:  rsp.RequestID,
			RawBody:    string(body),
		}
	}

	c.metrics.IncCounter(metrics.KeyDispatch)
	c.metrics.MeasureSince(metrics.KeyDispatch, start)
	c.log.Debugf("sms dispatched, request id %s", rsp.RequestID)

	return &provider.Receipt{
		RequestID: rsp.RequestID,
		MessageID: rsp.BizID,
		Target:    target,
		Code:      rsp.Code,
		Message:   rsp.Message,
	}, nil
}
