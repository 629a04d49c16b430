/*
Package net provides the I/O collaborators of the signing core: an HTTP
client with sane transport defaults and tracing, and a redis ring
client used as key-value credential store and distributed lock.

Neither client retries. Signed requests carry a nonce and a timestamp,
so a retry must re-sign; retry policy therefore belongs to the caller,
never to the transport.
*/
package net

import (
	"io"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

const (
	defaultTimeout = 30 * time.Second

	// tracingTagURL is reported without the query string: signed query
	// strings contain the request signature.
	tracingTagURL = "http.url"
)

// Options configures the http.Transport of the same name.
// Options.Timeout is used as default for all timeouts that are not
// set.
type Options struct {
	// Timeout sets all timeouts that are set to 0 to the given value.
	// Basically it's the default timeout value, defaults to 30s.
	Timeout time.Duration

	// TLSHandshakeTimeout, if not set, uses Options.Timeout.
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout, if not set, uses Options.Timeout.
	ResponseHeaderTimeout time.Duration

	// IdleConnTimeout, if not set, uses Options.Timeout.
	IdleConnTimeout time.Duration

	// MaxIdleConnsPerHost see https://golang.org/pkg/net/http/#Transport.MaxIdleConnsPerHost
	MaxIdleConnsPerHost int

	// Tracer for request spans, NoopTracer when nil.
	Tracer opentracing.Tracer

	// OpentracingComponentTag sets the component tag of request
	// spans, defaults to "signet".
	OpentracingComponentTag string

	// OpentracingSpanName sets the operation name of request spans,
	// defaults to "client_request".
	OpentracingSpanName string
}

// Client is an http client wrapper that applies the transport options
// and creates a span per request.
type Client struct {
	client    http.Client
	tracer    opentracing.Tracer
	component string
	spanName  string
	quit      chan struct{}
}

// NewClient creates a Client with the given options.
func NewClient(o Options) *Client {
	if o.Timeout == 0 {
		o.Timeout = defaultTimeout
	}
	if o.TLSHandshakeTimeout == 0 {
		o.TLSHandshakeTimeout = o.Timeout
	}
	if o.ResponseHeaderTimeout == 0 {
		o.ResponseHeaderTimeout = o.Timeout
	}
	if o.IdleConnTimeout == 0 {
		o.IdleConnTimeout = o.Timeout
	}
	if o.Tracer == nil {
		o.Tracer = &opentracing.NoopTracer{}
	}
	if o.OpentracingComponentTag == "" {
		o.OpentracingComponentTag = "signet"
	}
	if o.OpentracingSpanName == "" {
		o.OpentracingSpanName = "client_request"
	}

	transport := &http.Transport{
		TLSHandshakeTimeout:   o.TLSHandshakeTimeout,
		ResponseHeaderTimeout: o.ResponseHeaderTimeout,
		IdleConnTimeout:       o.IdleConnTimeout,
		MaxIdleConnsPerHost:   o.MaxIdleConnsPerHost,
	}

	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-time.After(o.IdleConnTimeout):
				transport.CloseIdleConnections()
			case <-quit:
				transport.CloseIdleConnections()
				return
			}
		}
	}()

	return &Client{
		client: http.Client{
			Transport: transport,
			Timeout:   o.Timeout,
		},
		tracer:    o.Tracer,
		component: o.OpentracingComponentTag,
		spanName:  o.OpentracingSpanName,
		quit:      quit,
	}
}

// Close stops the idle connection reaper.
func (c *Client) Close() {
	close(c.quit)
}

// Do executes the request with a span around it. The reported URL is
// stripped of the query string, because signed queries embed the
// signature.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	span := c.tracer.StartSpan(c.spanName)
	defer span.Finish()

	ext.Component.Set(span, c.component)
	ext.HTTPMethod.Set(span, req.Method)
	ext.SpanKindRPCClient.Set(span)
	span.SetTag(tracingTagURL, req.URL.Scheme+"://"+req.URL.Host+req.URL.Path)

	req = req.WithContext(opentracing.ContextWithSpan(req.Context(), span))

	rsp, err := c.client.Do(req)
	if err != nil {
		ext.Error.Set(span, true)
		return nil, err
	}

	ext.HTTPStatusCode.Set(span, uint16(rsp.StatusCode))
	return rsp, nil
}

// ReadBody drains and closes the response body, within the given
// limit.
func ReadBody(rsp *http.Response, limit int64) ([]byte, error) {
	defer rsp.Body.Close()
	return io.ReadAll(io.LimitReader(rsp.Body, limit))
}
