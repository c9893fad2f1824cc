// Package compress compresses single image files through the Tinify API.
package compress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/tinyimage/tinyimage/internal/config"
	"github.com/tinyimage/tinyimage/internal/constants"
	"github.com/tinyimage/tinyimage/internal/events"
	tihttp "github.com/tinyimage/tinyimage/internal/http"
	"github.com/tinyimage/tinyimage/internal/logging"
	"github.com/tinyimage/tinyimage/internal/progress"
)

// Result describes one compressed file.
type Result struct {
	InputSize  int64  `json:"inputSize"`
	OutputSize int64  `json:"outputSize"`
	OutputPath string `json:"outputPath"`
}

// Compressor compresses one file and streams progress while it runs.
type Compressor interface {
	Compress(ctx context.Context, path string, s *config.Settings, reporter progress.Reporter) (*Result, error)
}

type shrinkResponse struct {
	Input struct {
		Size int64 `json:"size"`
	} `json:"input"`
	Output struct {
		Size int64  `json:"size"`
		URL  string `json:"url"`
	} `json:"output"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// TinifyClient is the Compressor backed by the Tinify HTTP API. One client
// is shared by every file in every batch; it is safe for concurrent use.
type TinifyClient struct {
	limiter *rate.Limiter
	logger  *logging.Logger

	mu        sync.Mutex
	proxy     config.ProxyConfig
	client    *retryablehttp.Client
	newClient func(config.ProxyConfig) (*retryablehttp.Client, error)
}

// NewTinifyClient creates a client whose transport follows the proxy
// settings passed to each Compress call.
func NewTinifyClient(logger *logging.Logger) *TinifyClient {
	if logger == nil {
		logger = logging.Nop()
	}
	c := &TinifyClient{
		limiter: rate.NewLimiter(rate.Limit(constants.TinifyRequestsPerSecond), constants.TinifyBurst),
		logger:  logger,
	}
	c.newClient = func(p config.ProxyConfig) (*retryablehttp.Client, error) {
		httpClient, err := tihttp.CreateOptimizedClient(p, logger)
		if err != nil {
			return nil, err
		}
		return tihttp.NewRetryClient(httpClient, constants.TinifyRetryMax, logger), nil
	}
	return c
}

// NewTinifyClientWithHTTP creates a client that always uses httpClient.
// Used by tests against httptest servers.
func NewTinifyClientWithHTTP(httpClient *nethttp.Client, logger *logging.Logger) *TinifyClient {
	c := NewTinifyClient(logger)
	retry := tihttp.NewRetryClient(httpClient, constants.TinifyRetryMax, c.logger)
	c.newClient = func(config.ProxyConfig) (*retryablehttp.Client, error) {
		return retry, nil
	}
	return c
}

// clientFor returns the shared retry client, rebuilding it when the proxy
// settings changed since the last call.
func (c *TinifyClient) clientFor(p config.ProxyConfig) (*retryablehttp.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.proxy == p {
		return c.client, nil
	}
	client, err := c.newClient(p)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	c.client = client
	c.proxy = p
	return client, nil
}

// Compress uploads path to Tinify, downloads the result and writes it
// according to the output settings.
//
// Progress: uploading 0-40%, processing at 40%, downloading 50-99%, and
// 100% once the file is in place.
func (c *TinifyClient) Compress(ctx context.Context, path string, s *config.Settings, reporter progress.Reporter) (*Result, error) {
	if reporter == nil {
		reporter = progress.NoOpReporter{}
	}
	apiKey := strings.TrimSpace(s.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	outputPath, err := ResolveOutputPath(path, s)
	if err != nil {
		return nil, err
	}

	input, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	client, err := c.clientFor(s.Proxy)
	if err != nil {
		return nil, err
	}

	requestID := uuid.New().String()
	log := c.logger.With().Str("request_id", requestID).Str("path", path).Logger()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = constants.TinifyShrinkURL
	}

	// Upload (0-40%)
	reporter.Report(path, 0, events.PhaseUploading)
	shrink, err := c.upload(ctx, client, endpoint, apiKey, path, input, reporter)
	if err != nil {
		log.Warn().Err(err).Msg("Upload failed")
		return nil, err
	}

	reporter.Report(path, constants.ProcessingPercent, events.PhaseProcessing)
	log.Debug().
		Int64("input_size", shrink.Input.Size).
		Int64("output_size", shrink.Output.Size).
		Msg("Tinify accepted upload")

	// Download (50-99%)
	reporter.Report(path, constants.DownloadStartPercent, events.PhaseDownloading)
	data, err := c.download(ctx, client, shrink.Output.URL, apiKey, shrink.Output.Size, path, reporter)
	if err != nil {
		log.Warn().Err(err).Msg("Download failed")
		return nil, err
	}

	if len(data) < constants.MinCompressedPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooSmall, len(data))
	}

	if err := writeAtomic(outputPath, data); err != nil {
		return nil, err
	}

	reporter.Report(path, 100, events.PhaseDownloading)
	log.Info().
		Int("input_size", len(input)).
		Int("output_size", len(data)).
		Str("output", outputPath).
		Msg("Compressed")

	return &Result{
		InputSize:  int64(len(input)),
		OutputSize: int64(len(data)),
		OutputPath: outputPath,
	}, nil
}

func (c *TinifyClient) upload(ctx context.Context, client *retryablehttp.Client, endpoint, apiKey, path string, input []byte, reporter progress.Reporter) (*shrinkResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.HTTPRequestTimeout)
	defer cancel()

	total := int64(len(input))
	var mu sync.Mutex
	lastPct := 0

	// Each retry attempt re-streams the body from the start.
	body := retryablehttp.ReaderFunc(func() (io.Reader, error) {
		return progress.NewProgressReader(bytes.NewReader(input), total, func(current, total int64) {
			if total <= 0 {
				return
			}
			pct := int(float64(current) / float64(total) * constants.UploadPercentSpan)
			mu.Lock()
			emit := pct > lastPct
			if emit {
				lastPct = pct
			}
			mu.Unlock()
			if emit {
				reporter.Report(path, pct, events.PhaseUploading)
			}
		}), nil
	})

	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.SetBasicAuth("api", apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError("upload", resp)
	}

	var shrink shrinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&shrink); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if shrink.Output.URL == "" {
		return nil, fmt.Errorf("upload response has no output URL")
	}
	return &shrink, nil
}

func (c *TinifyClient) download(ctx context.Context, client *retryablehttp.Client, url, apiKey string, expected int64, path string, reporter progress.Reporter) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.HTTPRequestTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	req.SetBasicAuth("api", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError("download", resp)
	}

	capacity := expected
	if capacity <= 0 || capacity > 64<<20 {
		capacity = 0
	}
	data := make([]byte, 0, capacity)
	buf := make([]byte, constants.DownloadBufferSize)
	lastPct := constants.DownloadStartPercent

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
			if expected > 0 {
				pct := constants.DownloadStartPercent +
					int(float64(len(data))/float64(expected)*constants.DownloadPercentSpan)
				if pct > constants.DownloadStartPercent+constants.DownloadPercentSpan {
					pct = constants.DownloadStartPercent + constants.DownloadPercentSpan
				}
				if pct > lastPct {
					lastPct = pct
					reporter.Report(path, pct, events.PhaseDownloading)
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("download read failed: %w", err)
		}
	}
	return data, nil
}

// statusError builds a StatusError, preferring the service's own message.
func statusError(op string, resp *nethttp.Response) error {
	se := &StatusError{Op: op, StatusCode: resp.StatusCode}
	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		se.Message = body.Message
		if se.Message == "" {
			se.Message = body.Error
		}
	}
	return se
}
