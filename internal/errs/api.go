package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// genericTransportDetail is shown when no response was received at all.
const genericTransportDetail = "network error"

// APIError is the normalized failure returned by every resource call.
// Status is 0 when the request failed before a response arrived.
type APIError struct {
	Status int
	Detail string
	cause  error
}

func (e *APIError) Error() string { return e.Detail }

// Unwrap exposes the transport error, if any.
func (e *APIError) Unwrap() error { return e.cause }

// Is maps the HTTP status onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Status == 0
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrValidation:
		return e.Status == http.StatusUnprocessableEntity
	}
	return false
}

// Transport wraps a failure that produced no HTTP response.
func Transport(err error) *APIError {
	return &APIError{Detail: genericTransportDetail, cause: err}
}

// FromResponse builds an APIError from a non-2xx status and its raw body.
// The server-supplied detail wins over the generic message.
func FromResponse(status int, body []byte) *APIError {
	detail := detailFromBody(body)
	if detail == "" {
		detail = fmt.Sprintf("request failed with status %d", status)
	}
	return &APIError{Status: status, Detail: detail}
}

// BadBody wraps a successful response whose body could not be decoded.
func BadBody(status int, err error) *APIError {
	return &APIError{Status: status, Detail: "invalid response body", cause: err}
}

// Detail returns the user-facing message of any error, preferring the
// normalized API detail.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Detail
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return err.Error()
}

// detailFromBody understands {"detail": "..."}, FastAPI's
// {"detail": [{"msg": "..."}]}, and {"message"|"error": "..."}.
func detailFromBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(payload.Detail, &items) == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// ValidationError is a local input check that failed before any request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Field + " " + e.Reason
}

// Is reports ErrValidation so callers can treat local and server
// validation failures alike.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid is shorthand for a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
