package http

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/tinyimage/tinyimage/internal/logging"
)

// ErrorType represents different classes of errors for retry strategy
type ErrorType int

const (
	// ErrorTypeSuccess indicates operation succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential indicates a rejected API key (401). Never retried.
	ErrorTypeCredential
	// ErrorTypeNetwork indicates network/connection issues (timeouts, connection refused, etc.)
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates server errors that can be retried (429, 5xx)
	ErrorTypeRetryable
	// ErrorTypeFatal indicates client errors that should not be retried (400, 415, invalid request)
	ErrorTypeFatal
)

// ClassifyError determines the error type of a transport error.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeFatal
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "tls handshake timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") {
		return ErrorTypeNetwork
	}

	// TLS certificate problems and malformed URLs will not fix themselves
	return ErrorTypeFatal
}

// ClassifyResponse determines the error type of a completed round trip.
func ClassifyResponse(resp *nethttp.Response, err error) ErrorType {
	if err != nil {
		return ClassifyError(err)
	}
	if resp == nil {
		return ErrorTypeFatal
	}

	switch {
	case resp.StatusCode == nethttp.StatusTooManyRequests:
		return ErrorTypeRetryable
	case resp.StatusCode == nethttp.StatusUnauthorized:
		return ErrorTypeCredential
	case resp.StatusCode == nethttp.StatusNotImplemented:
		return ErrorTypeFatal
	case resp.StatusCode >= 500:
		return ErrorTypeRetryable
	case resp.StatusCode >= 400:
		return ErrorTypeFatal
	default:
		return ErrorTypeSuccess
	}
}

// CheckRetry is the retryablehttp.CheckRetry policy for the Tinify API.
func CheckRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	switch ClassifyResponse(resp, err) {
	case ErrorTypeNetwork, ErrorTypeRetryable:
		// Returning nil keeps the response so a final 429/5xx reaches the caller
		return true, nil
	case ErrorTypeFatal:
		return false, err
	default:
		return false, nil
	}
}

// CalculateBackoff returns exponential backoff duration with full jitter
// Full jitter prevents thundering herd problem when many clients retry simultaneously
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay {
		base = maxDelay
	}
	if base <= 0 {
		return 0
	}

	return time.Duration(rand.Int63n(int64(base)))
}

// Backoff is the retryablehttp.Backoff for the Tinify API. A Retry-After
// header on 429/503 wins; otherwise full-jitter exponential backoff.
func Backoff(min, max time.Duration, attemptNum int, resp *nethttp.Response) time.Duration {
	if resp != nil &&
		(resp.StatusCode == nethttp.StatusTooManyRequests || resp.StatusCode == nethttp.StatusServiceUnavailable) &&
		resp.Header.Get("Retry-After") != "" {
		return retryablehttp.DefaultBackoff(min, max, attemptNum, resp)
	}
	return CalculateBackoff(attemptNum+1, min, max)
}

// NewRetryClient wraps httpClient with the retry policy above. Callers use
// the retryablehttp client directly so request bodies are re-streamed per
// attempt instead of buffered.
func NewRetryClient(httpClient *nethttp.Client, retryMax int, logger *logging.Logger) *retryablehttp.Client {
	if logger == nil {
		logger = logging.Nop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = retryMax
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 15 * time.Second
	retryClient.CheckRetry = CheckRetry
	retryClient.Backoff = Backoff
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{logger: logger}
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *nethttp.Request, attempt int) {
		if attempt > 0 {
			logger.Warn().
				Str("method", req.Method).
				Str("host", req.URL.Host).
				Int("attempt", attempt+1).
				Msg("Retrying request")
		}
	}
	retryClient.ResponseLogHook = func(_ retryablehttp.Logger, resp *nethttp.Response) {
		if t := ClassifyResponse(resp, nil); t != ErrorTypeSuccess {
			logger.Debug().
				Int("status", resp.StatusCode).
				Str("class", ErrorTypeName(t)).
				Msg("Unsuccessful response")
		}
	}
	return retryClient
}

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Str("retry", fmt.Sprint(keysAndValues...)).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Str("retry", fmt.Sprint(keysAndValues...)).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Str("retry", fmt.Sprint(keysAndValues...)).Msg(msg)
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
