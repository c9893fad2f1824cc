package compress

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinyimage/tinyimage/internal/config"
)

// tempExtension marks in-progress writes next to the target.
const tempExtension = ".__tinytmp__"

// ResolveOutputPath returns where the compressed copy of input is written.
//
//	overwrite: /a/b/photo.png -> /a/b/photo.png
//	alongside: /a/b/photo.png -> /a/b/photo-tiny.png
//	directory: /a/b/photo.png -> <dir>/photo.png
func ResolveOutputPath(input string, s *config.Settings) (string, error) {
	switch s.OutputMode {
	case config.OutputOverwrite:
		return input, nil

	case config.OutputDirectory:
		if strings.TrimSpace(s.OutputDirectory) == "" {
			return "", ErrMissingOutputDirectory
		}
		return filepath.Join(s.OutputDirectory, filepath.Base(input)), nil

	case config.OutputAlongside, "":
		dir, name := filepath.Split(input)
		ext := filepath.Ext(name)
		if ext == name {
			// A dotfile such as ".png" has no extension
			ext = ""
		}
		stem := strings.TrimSuffix(name, ext)
		if stem == "" {
			return "", fmt.Errorf("cannot derive output name from %q", input)
		}
		return filepath.Join(dir, stem+"-tiny"+ext), nil

	default:
		return "", fmt.Errorf("%w: %q", config.ErrInvalidOutputMode, s.OutputMode)
	}
}

// writeAtomic writes data to a temporary sibling of target and renames it
// into place, so a failed write never leaves a truncated target behind.
func writeAtomic(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := checkFreeSpace(target, int64(len(data))); err != nil {
		return err
	}

	// Unique per call: siblings like photo.png and photo.jpg write concurrently
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*"+tempExtension)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}
