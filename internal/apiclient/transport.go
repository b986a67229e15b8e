package apiclient

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// LoggingTransport logs one line per request.
func LoggingTransport(next http.RoundTripper, log *zap.Logger) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		// metadata only: no bodies, no headers, no query
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("dur", time.Since(start)),
		}
		if err != nil {
			log.Warn("http", append(fields, zap.Error(err))...)
			return resp, err
		}
		log.Debug("http", fields...)
		return resp, err
	})
}

// RecoverTransport turns a panic in next into an error.
func RecoverTransport(next http.RoundTripper, log *zap.Logger) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (resp *http.Response, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic",
					zap.Any("reason", rec),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				resp, err = nil, fmt.Errorf("internal: %v", rec)
			}
		}()
		return next.RoundTrip(r)
	})
}
