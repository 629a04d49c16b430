package provider

import "fmt"

// The error taxonomy is closed: every failure a provider client can
// produce maps to exactly one of the types below. Errors are never
// swallowed and never reduced to a bare string; callers get the
// structured fields they need to build an actionable message.

// TransportError is a network level failure: timeout, connection
// refused, TLS. No response body exists, so none is parsed. A caller
// may retry, but only with a freshly signed request.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error for %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EncodingError is a malformed input on our side, a caller bug. Not
// retryable.
type EncodingError struct {
	Op  string
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: encoding error: %v", e.Op, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// SignatureError is an internal signing invariant violation, a
// programming error. Fatal for the request, never silently ignored.
type SignatureError struct {
	Reason string
	Err    error
}

func (e *SignatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signature error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("signature error: %s", e.Reason)
}

func (e *SignatureError) Unwrap() error { return e.Err }

// ServiceError is a rejection by the remote provider. Code and Message
// are provider specific strings, surfaced verbatim. RawBody holds the
// full wire response so operators can diagnose unexpected formats.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	HostID     string
	RawBody    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error: status=%d code=%s message=%s requestId=%s",
		e.StatusCode, e.Code, e.Message, e.RequestID)
}

// DecodeError means the response body matched no known envelope shape,
// success or error. The raw body is preserved for diagnosis.
type DecodeError struct {
	RawBody string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v: %s", e.Err, e.RawBody)
}

func (e *DecodeError) Unwrap() error { return e.Err }
