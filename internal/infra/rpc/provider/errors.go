package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrThrottled is returned while the provider is backing off after throttling.
var ErrThrottled = errors.New("provider throttled")

// HTTPError is a non-2xx HTTP response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// DecodeError is a response body that could not be parsed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode response: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// ErrorClass determines how a caller should treat an error.
type ErrorClass int

const (
	ClassTransient ErrorClass = iota // network, timeouts, 5xx
	ClassThrottled                   // 429 and provider quota messages
	ClassPermanent                   // malformed requests or responses
)

func (c ErrorClass) String() string {
	switch c {
	case ClassThrottled:
		return "throttled"
	case ClassPermanent:
		return "permanent"
	default:
		return "transient"
	}
}

var throttleMarkers = []string{
	"429",
	"too many requests",
	"rate limit",
	"quota",
	"count exceeded",
	"plan limit",
}

// Classify determines the class of err.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassTransient
	}
	if errors.Is(err, ErrThrottled) {
		return ClassThrottled
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return ClassThrottled
		case httpErr.StatusCode >= 500:
			return ClassTransient
		case hasThrottleMarker(httpErr.Body):
			return ClassThrottled
		case httpErr.StatusCode >= 400:
			return ClassPermanent
		}
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
		case -32700, -32600, -32601, -32602:
			return ClassPermanent
		}
	}

	var decodeErr *DecodeError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &decodeErr) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ClassPermanent
	}

	if hasThrottleMarker(err.Error()) {
		return ClassThrottled
	}
	return ClassTransient
}

func hasThrottleMarker(msg string) bool {
	s := strings.ToLower(msg)
	for _, m := range throttleMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// IsPermanent reports whether retrying err cannot help.
func IsPermanent(err error) bool {
	return err != nil && Classify(err) == ClassPermanent
}
