package compress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tinyimage/tinyimage/internal/config"
	"github.com/tinyimage/tinyimage/internal/events"
	"github.com/tinyimage/tinyimage/internal/logging"
	"github.com/tinyimage/tinyimage/internal/progress"
)

// fakeTinify serves /shrink and /output/<id> like the real API.
type fakeTinify struct {
	server       *httptest.Server
	output       []byte
	uploadStatus int
	uploadMsg    string
	failFirst    atomic.Int32 // number of 503s before accepting an upload
	uploads      atomic.Int32
	lastUpload   []byte
	mu           sync.Mutex
}

func newFakeTinify(t *testing.T, output []byte) *fakeTinify {
	t.Helper()
	f := &fakeTinify{output: output, uploadStatus: http.StatusCreated}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeTinify) handle(w http.ResponseWriter, r *http.Request) {
	user, key, ok := r.BasicAuth()
	if !ok || user != "api" || key != "test-key" {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized", "message": "Credentials are invalid."})
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/shrink":
		body, _ := io.ReadAll(r.Body)
		f.uploads.Add(1)
		if f.failFirst.Load() > 0 {
			f.failFirst.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		f.mu.Lock()
		f.lastUpload = body
		f.mu.Unlock()

		if f.uploadStatus != http.StatusCreated {
			w.WriteHeader(f.uploadStatus)
			json.NewEncoder(w).Encode(map[string]string{"error": "BadSignature", "message": f.uploadMsg})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		resp := map[string]any{
			"input":  map[string]any{"size": len(body), "type": "image/png"},
			"output": map[string]any{"size": len(f.output), "type": "image/png", "url": f.server.URL + "/output/abc"},
		}
		json.NewEncoder(w).Encode(resp)

	case r.Method == http.MethodGet && r.URL.Path == "/output/abc":
		w.Header().Set("Content-Type", "image/png")
		w.Write(f.output)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeTinify) settings(dir string) *config.Settings {
	s := config.Defaults()
	s.APIKey = "test-key"
	s.Endpoint = f.server.URL + "/shrink"
	s.OutputDirectory = dir
	return s
}

func writeInput(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x89}, size), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

type recordingReporter struct {
	mu      sync.Mutex
	reports []events.ProgressEvent
}

func (r *recordingReporter) Report(path string, percent int, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, events.ProgressEvent{Path: path, Percent: percent, Phase: phase})
}

func TestCompress_AlongsideWritesTinyCopy(t *testing.T) {
	output := bytes.Repeat([]byte{0x42}, 4096)
	fake := newFakeTinify(t, output)
	dir := t.TempDir()
	input := writeInput(t, dir, "photo.png", 10000)

	rec := &recordingReporter{}
	client := NewTinifyClientWithHTTP(fake.server.Client(), logging.Nop())

	res, err := client.Compress(context.Background(), input, fake.settings(""), rec)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	want := filepath.Join(dir, "photo-tiny.png")
	if res.OutputPath != want {
		t.Errorf("expected output %s, got %s", want, res.OutputPath)
	}
	if res.InputSize != 10000 || res.OutputSize != 4096 {
		t.Errorf("unexpected sizes %+v", res)
	}

	written, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !bytes.Equal(written, output) {
		t.Error("output content mismatch")
	}
	if _, err := os.Stat(filepath.Join(dir, "photo-tiny.__tinytmp__")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	// Phases must appear in order and percents never go backwards
	last := -1
	phases := map[string]bool{}
	for _, r := range rec.reports {
		if r.Percent < last {
			t.Errorf("progress went backwards: %v", rec.reports)
			break
		}
		last = r.Percent
		phases[r.Phase] = true
		if r.Phase == events.PhaseUploading && r.Percent > 40 {
			t.Errorf("upload reported %d%%", r.Percent)
		}
	}
	for _, p := range []string{events.PhaseUploading, events.PhaseProcessing, events.PhaseDownloading} {
		if !phases[p] {
			t.Errorf("missing phase %s", p)
		}
	}
	if last != 100 {
		t.Errorf("expected final 100%%, got %d", last)
	}
}

func TestCompress_PayloadSizeBoundary(t *testing.T) {
	tests := []struct {
		size    int
		wantErr bool
	}{
		{63, true},
		{64, false},
	}

	for _, tt := range tests {
		fake := newFakeTinify(t, bytes.Repeat([]byte{1}, tt.size))
		dir := t.TempDir()
		input := writeInput(t, dir, "a.png", 500)

		s := fake.settings("")
		s.OutputMode = config.OutputOverwrite
		client := NewTinifyClientWithHTTP(fake.server.Client(), logging.Nop())

		_, err := client.Compress(context.Background(), input, s, nil)
		if tt.wantErr {
			if !errors.Is(err, ErrPayloadTooSmall) {
				t.Errorf("size %d: expected ErrPayloadTooSmall, got %v", tt.size, err)
			}
			data, _ := os.ReadFile(input)
			if len(data) != 500 {
				t.Errorf("size %d: original was modified", tt.size)
			}
			continue
		}
		if err != nil {
			t.Errorf("size %d: unexpected error %v", tt.size, err)
		}
		data, _ := os.ReadFile(input)
		if len(data) != tt.size {
			t.Errorf("size %d: overwrite produced %d bytes", tt.size, len(data))
		}
	}
}

func TestCompress_DirectoryMode(t *testing.T) {
	fake := newFakeTinify(t, bytes.Repeat([]byte{7}, 128))
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "nested", "out")
	input := writeInput(t, src, "cat.webp", 300)

	s := fake.settings(out)
	s.OutputMode = config.OutputDirectory
	client := NewTinifyClientWithHTTP(fake.server.Client(), logging.Nop())

	res, err := client.Compress(context.Background(), input, s, nil)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if res.OutputPath != filepath.Join(out, "cat.webp") {
		t.Errorf("unexpected output path %s", res.OutputPath)
	}
}

func TestCompress_ConfigErrors(t *testing.T) {
	fake := newFakeTinify(t, bytes.Repeat([]byte{7}, 128))
	dir := t.TempDir()
	input := writeInput(t, dir, "a.png", 100)
	client := NewTinifyClientWithHTTP(fake.server.Client(), logging.Nop())

	s := fake.settings("")
	s.APIKey = "  "
	if _, err := client.Compress(context.Background(), input, s, nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}

	s = fake.settings("")
	s.OutputMode = config.OutputDirectory
	if _, err := client.Compress(context.Background(), input, s, nil); !errors.Is(err, ErrMissingOutputDirectory) {
		t.Errorf("expected ErrMissingOutputDirectory, got %v", err)
	}

	s = fake.settings("")
	if _, err := client.Compress(context.Background(), filepath.Join(dir, "missing.png"), s, nil); !errors.Is(err, ErrInputNotFound) {
		t.Errorf("expected ErrInputNotFound, got %v", err)
	}

	if fake.uploads.Load() != 0 {
		t.Errorf("config errors must not reach the service, got %d uploads", fake.uploads.Load())
	}
}

func TestCompress_UploadStatusError(t *testing.T) {
	fake := newFakeTinify(t, nil)
	fake.uploadStatus = http.StatusUnsupportedMediaType
	fake.uploadMsg = "File type is not supported."
	dir := t.TempDir()
	input := writeInput(t, dir, "a.png", 100)

	client := NewTinifyClientWithHTTP(fake.server.Client(), logging.Nop())
	_, err := client.Compress(context.Background(), input, fake.settings(""), nil)

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != 415 || se.Op != "upload" || !strings.Contains(se.Message, "not supported") {
		t.Errorf("unexpected status error %+v", se)
	}
}

func TestCompress_BadKeyIsStatusError(t *testing.T) {
	fake := newFakeTinify(t, nil)
	dir := t.TempDir()
	input := writeInput(t, dir, "a.png", 100)

	s := fake.settings("")
	s.APIKey = "wrong"
	client := NewTinifyClientWithHTTP(fake.server.Client(), logging.Nop())
	_, err := client.Compress(context.Background(), input, s, nil)

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 401 {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if se.Message != "Credentials are invalid." {
		t.Errorf("expected service message, got %q", se.Message)
	}
}

func TestCompress_RetryReplaysFullUpload(t *testing.T) {
	fake := newFakeTinify(t, bytes.Repeat([]byte{9}, 256))
	fake.failFirst.Store(1)
	dir := t.TempDir()
	input := writeInput(t, dir, "a.jpg", 5000)

	client := NewTinifyClientWithHTTP(fake.server.Client(), logging.Nop())
	if _, err := client.Compress(context.Background(), input, fake.settings(""), nil); err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	if fake.uploads.Load() != 2 {
		t.Errorf("expected 2 upload attempts, got %d", fake.uploads.Load())
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.lastUpload) != 5000 {
		t.Errorf("retried upload carried %d bytes, expected 5000", len(fake.lastUpload))
	}
}

func TestResolveOutputPath(t *testing.T) {
	input := filepath.FromSlash("/a/b/photo.png")

	tests := []struct {
		name    string
		mode    config.OutputMode
		dir     string
		want    string
		wantErr error
	}{
		{"alongside", config.OutputAlongside, "", filepath.FromSlash("/a/b/photo-tiny.png"), nil},
		{"overwrite", config.OutputOverwrite, "", input, nil},
		{"directory", config.OutputDirectory, filepath.FromSlash("/out"), filepath.FromSlash("/out/photo.png"), nil},
		{"directory unset", config.OutputDirectory, "", "", ErrMissingOutputDirectory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.Defaults()
			s.OutputMode = tt.mode
			s.OutputDirectory = tt.dir
			got, err := ResolveOutputPath(input, s)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestResolveOutputPath_NoExtension(t *testing.T) {
	s := config.Defaults()
	got, err := ResolveOutputPath(filepath.FromSlash("/a/b/photo"), s)
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.FromSlash("/a/b/photo-tiny") {
		t.Errorf("unexpected path %s", got)
	}
}

func TestResolveOutputPath_Dotfile(t *testing.T) {
	got, err := ResolveOutputPath(filepath.FromSlash("/a/b/.png"), config.Defaults())
	if err != nil {
		t.Fatalf("ResolveOutputPath() error = %v", err)
	}
	if got != filepath.FromSlash("/a/b/.png-tiny") {
		t.Errorf("expected /a/b/.png-tiny, got %s", got)
	}
}

var _ Compressor = (*TinifyClient)(nil)
var _ progress.Reporter = (*recordingReporter)(nil)

func TestCheckFreeSpace(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a-tiny.png")

	if err := checkFreeSpace(target, 1024); err != nil {
		t.Errorf("small write rejected: %v", err)
	}

	available, ok := availableSpace(filepath.Dir(target))
	if !ok {
		t.Skip("free space unknown on this filesystem")
	}
	err := checkFreeSpace(target, available)
	var spaceErr *InsufficientSpaceError
	if !errors.As(err, &spaceErr) {
		t.Fatalf("expected InsufficientSpaceError, got %v", err)
	}
	if spaceErr.RequiredBytes <= available || spaceErr.Path != target {
		t.Errorf("unexpected error fields %+v", spaceErr)
	}
}

func TestWriteAtomic(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out", "a.png")

	if err := writeAtomic(target, []byte("data")); err != nil {
		t.Fatalf("writeAtomic() error = %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil || string(got) != "data" {
		t.Errorf("unexpected content %q, err %v", got, err)
	}
	if left, _ := filepath.Glob(filepath.Join(filepath.Dir(target), "*"+tempExtension)); len(left) != 0 {
		t.Errorf("temporary files left behind: %v", left)
	}
}

func TestWriteAtomic_SameStemSiblingsConcurrently(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "photo.png")
	jpg := filepath.Join(dir, "photo.jpg")

	for i := 0; i < 100; i++ {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() { defer wg.Done(); errs[0] = writeAtomic(png, []byte("png-bytes")) }()
		go func() { defer wg.Done(); errs[1] = writeAtomic(jpg, []byte("jpg-bytes")) }()
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				t.Fatalf("iteration %d: writeAtomic() error = %v", i, err)
			}
		}
		if got, _ := os.ReadFile(png); string(got) != "png-bytes" {
			t.Fatalf("iteration %d: photo.png holds %q", i, got)
		}
		if got, _ := os.ReadFile(jpg); string(got) != "jpg-bytes" {
			t.Fatalf("iteration %d: photo.jpg holds %q", i, got)
		}
	}
	if left, _ := filepath.Glob(filepath.Join(dir, "*"+tempExtension)); len(left) != 0 {
		t.Errorf("temporary files left behind: %v", left)
	}
}
