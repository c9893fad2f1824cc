// Package wailsapp provides file-related Wails bindings.
package wailsapp

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/tinyimage/tinyimage/internal/compress"
	"github.com/tinyimage/tinyimage/internal/config"
	"github.com/tinyimage/tinyimage/internal/invocation"
	"github.com/tinyimage/tinyimage/internal/progress"
	"github.com/tinyimage/tinyimage/internal/state"
)

// GetStartupFiles marks the UI ready and returns every file queued while it
// was loading. After this call new files arrive as add-files and
// compress-files events.
func (a *App) GetStartupFiles() []state.QueuedFile {
	files := a.state.Startup.MarkReadyAndDrain()
	if files == nil {
		files = []state.QueuedFile{}
	}
	a.logger.Debug().Int("count", len(files)).Msg("Startup files delivered")
	return files
}

// InitWindow shows the window once the frontend has rendered, unless the
// process is running as a background compressor.
func (a *App) InitWindow() {
	if a.lifecycle.IsBackground() {
		a.logger.Debug().Msg("Background mode, window stays hidden")
		return
	}
	a.window.Show()
}

// LocalFileInfoDTO contains information about a local image file.
type LocalFileInfoDTO struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	ModTime string `json:"modTime"`
	Error   string `json:"error,omitempty"`
}

// GetLocalFilesInfo returns file information for a list of paths.
func (a *App) GetLocalFilesInfo(paths []string) []LocalFileInfoDTO {
	results := make([]LocalFileInfoDTO, len(paths))

	for i, path := range paths {
		dto := LocalFileInfoDTO{Path: path, Name: filepath.Base(path)}
		info, err := os.Stat(path)
		switch {
		case err != nil:
			dto.Error = err.Error()
		case info.IsDir():
			dto.Error = "is a directory"
		default:
			dto.Size = info.Size()
			dto.ModTime = info.ModTime().Format(time.RFC3339)
		}
		results[i] = dto
	}

	return results
}

// GetImagePreview returns path as a data: URL for the thumbnail list.
func (a *App) GetImagePreview(path string) (string, error) {
	return imageDataURL(path)
}

func imageDataURL(path string) (string, error) {
	mime := imageMIMEType(path)
	if mime == "" {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrNotImage)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func imageMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	}
	return ""
}

// CompressImage compresses one file with the settings the UI holds.
// Progress is published as compress-progress events.
func (a *App) CompressImage(path string, s config.Settings) (*compress.Result, error) {
	if !invocation.IsImagePath(path) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNotImage)
	}

	settings := s.Clone()
	settings.Proxy.Password = a.currentSettings().Proxy.Password

	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := a.compressor.Compress(ctx, path, settings, progress.NewBusReporter(a.bus))
	if err != nil {
		a.logger.Warn().Err(err).Str("path", path).Msg("Compression failed")
		return nil, err
	}
	return result, nil
}

// NotifyResult reports a batch the UI ran itself, on the surface s selects.
func (a *App) NotifyResult(s config.Settings, successes, failures int) {
	a.lifecycle.NotifyBatchResult(successes, failures, s.NotifyMode, false)
}

// SelectImages opens a file dialog and returns the chosen images.
func (a *App) SelectImages(title string) ([]string, error) {
	paths, err := runtime.OpenMultipleFilesDialog(a.ctx, runtime.OpenDialogOptions{
		Title: title,
		Filters: []runtime.FileFilter{
			{DisplayName: "Images (*.png;*.jpg;*.jpeg;*.webp)", Pattern: "*.png;*.jpg;*.jpeg;*.webp"},
		},
	})
	if err != nil {
		return nil, err
	}
	return invocation.FilterImagePaths(paths), nil
}

// SelectDirectory opens a directory dialog.
func (a *App) SelectDirectory(title string) (string, error) {
	return runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{Title: title})
}

// SelectImageDirectory opens a directory dialog and returns every image
// below it, recursively.
func (a *App) SelectImageDirectory(title string) ([]string, error) {
	dir, err := a.SelectDirectory(title)
	if err != nil || dir == "" {
		return nil, err
	}
	return listImages(dir)
}

func listImages(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on error
		}
		if !d.IsDir() && invocation.IsImagePath(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
