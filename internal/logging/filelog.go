package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// fileLogger is the rotating file logger
	fileLogger *lumberjack.Logger
	// fileLoggerMu protects fileLogger
	fileLoggerMu sync.RWMutex
)

// InitFileLogger initializes file-based logging with rotation in logDir.
// Calling it again after a successful init is a no-op.
func InitFileLogger(logDir string) error {
	fileLoggerMu.Lock()
	defer fileLoggerMu.Unlock()

	if fileLogger != nil {
		return nil
	}

	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	fileLogger = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "tinyimage.log"),
		MaxSize:    10, // MB per file
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	return nil
}

// FileWriter returns a writer for the rotating log file, or io.Discard when
// file logging has not been initialized.
func FileWriter() io.Writer {
	return fileWriter{}
}

// fileWriter resolves the lumberjack logger on every write so loggers created
// before InitFileLogger still reach the file.
type fileWriter struct{}

func (fileWriter) Write(p []byte) (int, error) {
	fileLoggerMu.RLock()
	defer fileLoggerMu.RUnlock()

	if fileLogger == nil {
		return len(p), nil
	}
	return fileLogger.Write(p)
}

// LogFilePath returns the current log file path, or "" when disabled.
func LogFilePath() string {
	fileLoggerMu.RLock()
	defer fileLoggerMu.RUnlock()

	if fileLogger != nil {
		return fileLogger.Filename
	}
	return ""
}

// CloseFileLogger closes the file logger (call on shutdown).
func CloseFileLogger() {
	fileLoggerMu.Lock()
	defer fileLoggerMu.Unlock()

	if fileLogger != nil {
		fileLogger.Close()
		fileLogger = nil
	}
}
