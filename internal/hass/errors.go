package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind categorizes API failures for the caller.
type ErrorKind string

const (
	KindConnection  ErrorKind = "connection"
	KindTimeout     ErrorKind = "timeout"
	KindAuth        ErrorKind = "auth"
	KindNotFound    ErrorKind = "not_found"
	KindUnavailable ErrorKind = "unavailable"
	KindHTTP        ErrorKind = "http"
	KindMalformed   ErrorKind = "malformed"
)

// APIError is a transport or HTTP failure talking to the hub.
type APIError struct {
	Kind       ErrorKind
	StatusCode int // 0 when no response was received
	Message    string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%d] %s", e.StatusCode, e.Message)
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

// IsKind reports whether err is an *APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

func transportError(baseURL string, timeout fmt.Stringer, err error) *APIError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &APIError{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("Request timed out after %s. Error: %v", timeout, err),
			Err:     err,
		}
	}
	return &APIError{
		Kind: KindConnection,
		Message: fmt.Sprintf("Connection failed to %s. "+
			"Ensure Home Assistant is reachable and the URL is correct. Error: %v", baseURL, err),
		Err: err,
	}
}

// statusError builds the error for a response with status >= 400.
func statusError(resp *http.Response, body []byte) *APIError {
	e := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		e.Kind = KindAuth
		e.Message = "Authentication failed. Check your Home Assistant token. " +
			"Ensure it's a valid long-lived access token."
		return e
	case http.StatusNotFound:
		e.Kind = KindNotFound
		e.Message = "Resource not found: " + resp.Request.URL.String()
		return e
	case http.StatusServiceUnavailable:
		e.Kind = KindUnavailable
		e.Message = "Home Assistant is unavailable or starting up."
		return e
	}

	e.Kind = KindHTTP
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		e.Message = payload.Message
	} else {
		e.Message = fmt.Sprintf("API error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return e
}
