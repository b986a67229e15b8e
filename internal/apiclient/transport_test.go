package apiclient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestLoggingTransport_Passthrough(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ok := RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusTeapot, Body: http.NoBody}, nil
	})
	rt := LoggingTransport(ok, log)

	req := httptest.NewRequest(http.MethodGet, "http://x/p", nil)
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.StatusCode != http.StatusTeapot {
		t.Fatalf("status mismatch: %d", resp.StatusCode)
	}

	wantErr := errors.New("boom")
	bad := RoundTripperFunc(func(r *http.Request) (*http.Response, error) { return nil, wantErr })
	_, err = LoggingTransport(bad, log).RoundTrip(req)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}
}

func TestRecoverTransport_CatchesPanic(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	rt := RecoverTransport(RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		panic("oh no")
	}), log)

	req := httptest.NewRequest(http.MethodGet, "http://x/panic", nil)
	resp, err := rt.RoundTrip(req)
	if err == nil {
		t.Fatalf("expected error from panic")
	}
	if resp != nil {
		t.Fatalf("expected nil response")
	}
}

func TestLoggingTransport_DurationReflectsHandler(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	slow := RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		time.Sleep(5 * time.Millisecond)
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})

	start := time.Now()
	if _, err := LoggingTransport(slow, log).RoundTrip(httptest.NewRequest(http.MethodGet, "http://x/s", nil)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("duration should reflect transport time")
	}
}
