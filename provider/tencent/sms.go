package tencent

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/zalando/signet/metrics"
	"github.com/zalando/signet/provider"
	"github.com/zalando/signet/signer"
)

const smsStatusOk = "Ok"

type sendSmsRequest struct {
	PhoneNumberSet   []string `json:"PhoneNumberSet"`
	SmsSdkAppID      string   `json:"SmsSdkAppId"`
	SignName         string   `json:"SignName"`
	TemplateID       string   `json:"TemplateId"`
	TemplateParamSet []string `json:"TemplateParamSet,omitempty"`
}

type sendSmsResponse struct {
	Response struct {
		SendStatusSet []struct {
			SerialNo    string `json:"SerialNo"`
			PhoneNumber string `json:"PhoneNumber"`
			Code        string `json:"Code"`
			Message     string `json:"Message"`
		} `json:"SendStatusSet"`
		RequestID string         `json:"RequestId"`
		Error     *responseError `json:"Error"`
	} `json:"Response"`
}

// SendMessage dispatches a templated SMS to target. Template
// parameters are positional on the wire, so the params map is
// flattened in key order to keep requests deterministic. A per-number
// status other than Ok is a rejection even on HTTP 200.
func (c *Client) SendMessage(ctx context.Context, target string, params map[string]string) (*provider.Receipt, error) {
	start := time.Now()
	payload, err := marshalPayload("sendSms", &sendSmsRequest{
		PhoneNumberSet:   []string{target},
		SmsSdkAppID:      c.smsSdkAppID,
		SignName:         c.smsSignName,
		TemplateID:       c.smsTemplateID,
		TemplateParamSet: flattenParams(params),
	})
	if err != nil {
		return nil, err
	}

	headers := []signer.Header{
		{Name: "content-type", Value: "application/json; charset=utf-8"},
		{Name: "host", Value: endpointHost(c.smsEndpoint)},
		{Name: "x-tc-action", Value: "sendsms"},
	}

	body, err := c.call(ctx, "sendSms", c.smsEndpoint, smsService, "SendSms", smsAPIVersion, headers, payload)
	if err != nil {
		c.metrics.IncCounter(metrics.KeyDispatchFailure)
		return nil, err
	}

	var rsp sendSmsResponse
	if err := json.Unmarshal(body, &rsp); err != nil {
		c.metrics.IncCounter(metrics.KeyDispatchFailure)
		return nil, &provider.DecodeError{RawBody: string(body), Err: err}
	}

	if rsp.Response.Error != nil {
		c.metrics.IncCounter(metrics.KeyDispatchFailure)
		return nil, rsp.Response.Error.serviceError(rsp.Response.RequestID, body)
	}

	for _, st := range rsp.Response.SendStatusSet {
		if st.Code != smsStatusOk {
			c.metrics.IncCounter(metrics.KeyDispatchFailure)
			return nil, &provider.ServiceError{
				StatusCode: http.StatusOK,
				Code:       st.Code,
				Message:    st.Message,
				RequestID:  rsp.Response.RequestID,
				RawBody:    string(body),
			}
		}
	}

	c.metrics.IncCounter(metrics.KeyDispatch)
	c.metrics.MeasureSince(metrics.KeyDispatch, start)
	c.log.Debugf("sms dispatched, request id %s", rsp.Response.RequestID)

	receipt := &provider.Receipt{
		RequestID: rsp.Response.RequestID,
		Target:    target,
		Code:      smsStatusOk,
	}

	if len(rsp.Response.SendStatusSet) > 0 {
		st := rsp.Response.SendStatusSet[0]
		receipt.MessageID = st.SerialNo
		receipt.Code = st.Code
		receipt.Message = st.Message
	}

	return receipt, nil
}

func flattenParams(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = params[k]
	}

	return values
}
