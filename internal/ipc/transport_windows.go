//go:build windows

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/user"
	"strings"
	"syscall"
	"time"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"
)

// Windows error codes for named pipes
const (
	ERROR_FILE_NOT_FOUND = syscall.Errno(2)
	ERROR_PIPE_BUSY      = syscall.Errno(231)
)

const pipePrefix = `\\.\pipe\tinyimage-`

// DefaultEndpoint returns the per-user named pipe.
func DefaultEndpoint() (string, error) {
	name := "default"
	if u, err := user.Current(); err == nil && u.Username != "" {
		// DOMAIN\user; backslashes are not allowed in a pipe name
		name = strings.ReplaceAll(u.Username, `\`, "-")
	}
	return pipePrefix + strings.ToLower(name), nil
}

func listen(pipe string) (net.Listener, error) {
	if pipeInUse(pipe) {
		return nil, ErrAlreadyRunning
	}

	sd := "D:P(A;;GA;;;AU)"
	if sid, err := currentUserSID(); err == nil {
		// Only the owning user may connect
		sd = fmt.Sprintf("D:P(A;;GA;;;%s)", sid)
	}

	cfg := &winio.PipeConfig{
		SecurityDescriptor: sd,
		MessageMode:        true,
		InputBufferSize:    4096,
		OutputBufferSize:   4096,
	}

	listener, err := winio.ListenPipe(pipe, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create named pipe: %w", err)
	}
	return listener, nil
}

func dial(ctx context.Context, pipe string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, pipe)
}

// isNoListener reports whether a dial failed because the pipe does not
// exist. os.IsNotExist is unreliable for pipes, so check the errno.
func isNoListener(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == ERROR_FILE_NOT_FOUND
	}
	return false
}

// pipeInUse returns false only if the pipe definitively does not exist.
func pipeInUse(pipe string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	conn, err := winio.DialPipeContext(ctx, pipe)
	if conn != nil {
		conn.Close()
		return true
	}
	if err == nil {
		return false
	}
	// ERROR_PIPE_BUSY, access denied, timeouts: assume it exists
	return !isNoListener(err)
}

func currentUserSID() (string, error) {
	token, err := windows.OpenCurrentProcessToken()
	if err != nil {
		return "", fmt.Errorf("failed to open process token: %w", err)
	}
	defer token.Close()

	u, err := token.GetTokenUser()
	if err != nil {
		return "", fmt.Errorf("failed to get token user: %w", err)
	}
	return u.User.Sid.String(), nil
}

// Pipes vanish with their last handle.
func cleanup(string) {}
