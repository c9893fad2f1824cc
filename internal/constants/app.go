package constants

import (
	"time"
)

// Application identity
const (
	// AppName is used for window titles, notification titles and config directories.
	AppName = "TinyImage"

	// URLScheme is the custom scheme registered for deep links (tinyimage://compress?...).
	URLScheme = "tinyimage"
)

// Batch coordination timing
//
// Both values mask OS-level multi-invocation delivery latency (a multi-select
// right-click arrives as N separate single-file invocations). They are
// defaults only; settings may override them.
const (
	// BatchGracePeriod - how long the finalizer waits after pending hits 0
	// before treating the batch as closed (500ms)
	BatchGracePeriod = 500 * time.Millisecond

	// BackgroundExitDelay - delay between the final notification and the
	// background self-exit so the notification surface can flush (300ms)
	BackgroundExitDelay = 300 * time.Millisecond

	// BackgroundExitCode is the only exit code defined by the coordinator.
	BackgroundExitCode = 0
)

// Tinify service
const (
	// TinifyShrinkURL is the upload endpoint of the Tinify API.
	TinifyShrinkURL = "https://api.tinify.com/shrink"

	// MinCompressedPayload - downloads smaller than this are rejected as corrupt (64 bytes)
	MinCompressedPayload = 64

	// TinifyRequestsPerSecond - client-side pacing toward the Tinify API
	TinifyRequestsPerSecond = 8

	// TinifyBurst - burst allowance on top of the steady rate
	TinifyBurst = 8

	// TinifyRetryMax - retry attempts for 429/5xx/connection errors
	TinifyRetryMax = 3

	// DownloadBufferSize - read buffer for streamed downloads (16 KB)
	DownloadBufferSize = 16 * 1024
)

// Progress phase boundaries (percent)
const (
	// UploadPercentSpan - upload occupies 0-40%
	UploadPercentSpan = 40

	// ProcessingPercent - reported once the upload is accepted
	ProcessingPercent = 40

	// DownloadStartPercent - download occupies 50-99%, the last 1% is the file write
	DownloadStartPercent = 50

	// DownloadPercentSpan - width of the download phase
	DownloadPercentSpan = 49
)

// Event bus sizing
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	// Progress events for a large multi-select can burst; 1000 keeps the
	// publisher non-blocking without losing terminal events in practice.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000

	// ProgressThrottleInterval - minimum interval between forwarded progress
	// events for the same file (10 updates/sec)
	ProgressThrottleInterval = 100 * time.Millisecond
)

// IPC
const (
	// IPCDialTimeout - how long a secondary instance waits for the primary
	IPCDialTimeout = 2 * time.Second

	// IPCRequestTimeout - deadline for one forwarded invocation round trip
	IPCRequestTimeout = 5 * time.Second
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPRequestTimeout - overall timeout for one upload or download (120 seconds)
	HTTPRequestTimeout = 120 * time.Second

	// HTTPMaxIdleConnsPerHost - idle pool per host, shared by all concurrent compressions
	HTTPMaxIdleConnsPerHost = 4
)
