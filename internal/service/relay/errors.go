package relay

import (
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies relay failures.
type Kind string

const (
	KindMalformedRequest    Kind = "malformed_request"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindProviderStream      Kind = "provider_stream_error"
	KindTimeout             Kind = "timeout"
	KindCallerGone          Kind = "caller_gone"
)

var (
	ErrMalformedRequest    = errors.New("malformed request")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderStream      = errors.New("provider stream terminated abnormally")
	ErrTimeout             = errors.New("relay deadline exceeded")
	ErrCallerGone          = errors.New("caller disconnected")
)

var sentinels = map[Kind]error{
	KindMalformedRequest:    ErrMalformedRequest,
	KindProviderUnavailable: ErrProviderUnavailable,
	KindProviderStream:      ErrProviderStream,
	KindTimeout:             ErrTimeout,
	KindCallerGone:          ErrCallerGone,
}

// Error is a classified relay failure. Started reports whether fragments had been
// handed to the sink before the failure.
type Error struct {
	Kind    Kind
	Started bool
	Err     error
}

// NewError classifies err under kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return sentinels[e.Kind].Error()
	}
	return sentinels[e.Kind].Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// KindOf returns the relay kind carried by err, or "" when err is not a relay error.
func KindOf(err error) Kind {
	var relayErr *Error
	if errors.As(err, &relayErr) {
		return relayErr.Kind
	}
	return ""
}

// HTTPStatus maps a failure kind to the status used for pre-stream error responses.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindMalformedRequest:
		return http.StatusBadRequest
	case KindProviderUnavailable, KindProviderStream:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCallerGone:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to show the caller. Provider details stay in the logs.
func (e *Error) PublicMessage() string {
	if e.Kind == KindMalformedRequest {
		return e.Error()
	}
	return sentinels[e.Kind].Error()
}
