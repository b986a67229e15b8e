// Package errs contains sentinel errors and the normalized API error shape
// shared by the HTTP client, resource services and the CLI.
package errs

import "errors"

// Common sentinels across client layers.
var (
	// ErrUnauthorized indicates a missing, expired or rejected bearer token (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the server refused the action for this viewer (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested entity does not exist (HTTP 404).
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness or state conflict (HTTP 409).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates input rejected locally or by the server (HTTP 422).
	ErrValidation = errors.New("validation")

	// ErrTransport indicates the request never produced a response.
	ErrTransport = errors.New("transport")

	// ErrInFlight indicates a request for the same resource is still pending.
	ErrInFlight = errors.New("request already in flight")

	// ErrNoSession indicates a protected operation was attempted without a token.
	ErrNoSession = errors.New("not logged in")
)
