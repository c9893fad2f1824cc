package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/tinyimage/tinyimage/internal/logging"
)

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
		want   ErrorType
	}{
		{"created", 201, nil, ErrorTypeSuccess},
		{"ok", 200, nil, ErrorTypeSuccess},
		{"rate limited", 429, nil, ErrorTypeRetryable},
		{"server error", 503, nil, ErrorTypeRetryable},
		{"not implemented", 501, nil, ErrorTypeFatal},
		{"bad key", 401, nil, ErrorTypeCredential},
		{"unsupported media", 415, nil, ErrorTypeFatal},
		{"connection reset", 0, fmt.Errorf("read: connection reset by peer"), ErrorTypeNetwork},
		{"cancelled", 0, fmt.Errorf("wrapped: %w", context.Canceled), ErrorTypeFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.err == nil {
				resp = &http.Response{StatusCode: tt.status, Header: http.Header{}}
			}
			if got := ClassifyResponse(resp, tt.err); got != tt.want {
				t.Errorf("expected %s, got %s", ErrorTypeName(tt.want), ErrorTypeName(got))
			}
		})
	}
}

func TestCheckRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retry, err := CheckRetry(ctx, &http.Response{StatusCode: 503}, nil)
	if retry {
		t.Error("should not retry after cancel")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCalculateBackoff_Bounds(t *testing.T) {
	if d := CalculateBackoff(0, time.Second, time.Minute); d != 0 {
		t.Errorf("attempt 0 should not wait, got %v", d)
	}
	for attempt := 1; attempt < 10; attempt++ {
		d := CalculateBackoff(attempt, 10*time.Millisecond, 100*time.Millisecond)
		if d < 0 || d >= 100*time.Millisecond {
			t.Errorf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}

func TestBackoff_HonorsRetryAfter(t *testing.T) {
	resp := &http.Response{StatusCode: 429, Header: http.Header{"Retry-After": []string{"2"}}}
	if d := Backoff(time.Millisecond, time.Minute, 0, resp); d != 2*time.Second {
		t.Errorf("expected 2s from Retry-After, got %v", d)
	}
}

func TestNewRetryClient_RetriesServerErrorsAndReplaysBody(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "payload" {
			t.Errorf("attempt %d saw body %q", calls.Load()+1, body)
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewRetryClient(server.Client(), 3, logging.Nop())
	client.RetryWaitMin = time.Millisecond
	client.RetryWaitMax = 5 * time.Millisecond

	req, err := retryablehttp.NewRequest("POST", server.URL, retryablehttp.ReaderFunc(func() (io.Reader, error) {
		return strings.NewReader("payload"), nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestNewRetryClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewRetryClient(server.Client(), 3, logging.Nop())
	req, _ := retryablehttp.NewRequest("POST", server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 passed through, got %d", resp.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}

func TestNewRetryClient_ExhaustedRetriesReturnLastResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewRetryClient(server.Client(), 1, logging.Nop())
	client.RetryWaitMin = time.Millisecond
	client.RetryWaitMax = 2 * time.Millisecond
	req, _ := retryablehttp.NewRequest("GET", server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("expected passthrough without error, got %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected final 429, got %d", resp.StatusCode)
	}
}
