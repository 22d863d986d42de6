// Package domain provides shared domain-level sentinel errors.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a uniqueness violation, such as a duplicate username or tool name.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates malformed or missing input.
var ErrValidation = errors.New("validation failed")

// ErrUnauthorized indicates the caller could not be identified.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden indicates the caller does not own the resource.
var ErrForbidden = errors.New("forbidden")

// ErrUpstream indicates an external service failed or could not be reached.
var ErrUpstream = errors.New("upstream failure")

// UpstreamError describes why an external API call failed. Its message is
// safe to show to the caller. It matches ErrUpstream with errors.Is.
type UpstreamError struct {
	Status int    // HTTP status, 0 when no response was received
	Detail string // response body or transport failure
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return "External API Error: " + e.Detail
	}
	return fmt.Sprintf("External API Error: %d %s", e.Status, e.Detail)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// Message returns err's text without a trailing ": validation failed" or
// ": unauthorized", which classify the error but mean nothing to a client.
func Message(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrValidation, ErrUnauthorized} {
		msg = strings.TrimSuffix(msg, ": "+sentinel.Error())
	}
	return msg
}
