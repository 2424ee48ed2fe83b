package provider

import (
	"errors"
	"fmt"
)

// Reason classifies a failed provider call.
type Reason int

const (
	ReasonTimeout   Reason = iota + 1 // the provider's own deadline elapsed
	ReasonUpstream                    // upstream answered outside 2xx
	ReasonTransport                   // connection, DNS or body read failure
)

func (r Reason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonUpstream:
		return "upstream"
	case ReasonTransport:
		return "transport"
	}
	return "unknown"
}

// FetchError is the typed failure for a single provider call.
// Status is set for upstream failures only.
type FetchError struct {
	Reason Reason
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Reason {
	case ReasonUpstream:
		if e.Err != nil {
			return fmt.Sprintf("upstream status %d: %v", e.Status, e.Err)
		}
		return fmt.Sprintf("upstream status %d", e.Status)
	case ReasonTimeout:
		if e.Err != nil {
			return fmt.Sprintf("fetch timed out: %v", e.Err)
		}
		return "fetch timed out"
	default:
		if e.Err != nil {
			return fmt.Sprintf("transport: %v", e.Err)
		}
		return "transport failure"
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

func NewTimeout(err error) *FetchError { return &FetchError{Reason: ReasonTimeout, Err: err} }

func NewUpstream(status int, err error) *FetchError {
	return &FetchError{Reason: ReasonUpstream, Status: status, Err: err}
}

func NewTransport(err error) *FetchError { return &FetchError{Reason: ReasonTransport, Err: err} }

func reasonOf(err error) Reason {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return 0
}

func IsTimeout(err error) bool   { return reasonOf(err) == ReasonTimeout }
func IsUpstream(err error) bool  { return reasonOf(err) == ReasonUpstream }
func IsTransport(err error) bool { return reasonOf(err) == ReasonTransport }

// UpstreamStatus returns the HTTP status carried by an upstream failure,
// or 0 when err is not one.
func UpstreamStatus(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Reason == ReasonUpstream {
		return fe.Status
	}
	return 0
}
