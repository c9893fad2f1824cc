package compress

import (
	"fmt"
	"path/filepath"
)

// spaceMargin leaves room for the temporary file and filesystem overhead.
const spaceMargin = 1.1

// InsufficientSpaceError is returned when the output volume cannot hold the
// compressed file.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %.2f MB, have %.2f MB available",
		e.Path, float64(e.RequiredBytes)/(1024*1024), float64(e.AvailableBytes)/(1024*1024))
}

// checkFreeSpace fails when the volume holding target has less than size
// bytes (plus margin) free. An unknown amount of free space passes; the
// write then fails on its own if it has to.
func checkFreeSpace(target string, size int64) error {
	available, ok := availableSpace(filepath.Dir(target))
	if !ok {
		return nil
	}
	required := int64(float64(size) * spaceMargin)
	if available < required {
		return &InsufficientSpaceError{Path: target, RequiredBytes: required, AvailableBytes: available}
	}
	return nil
}
