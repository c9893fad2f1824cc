package ipc

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/tinyimage/tinyimage/internal/invocation"
	"github.com/tinyimage/tinyimage/internal/logging"
)

// ErrNotAccepted is returned to a forwarding instance when the primary
// dropped its invocation, typically because it is exiting.
var ErrNotAccepted = errors.New("invocation not accepted by running instance")

// Dispatcher receives parsed invocations. Implemented by router.Router.
type Dispatcher interface {
	Handle(inv invocation.Invocation) (accepted bool)
}

// InvocationHandler turns forwarded argv into an Invocation.
type InvocationHandler struct {
	dispatcher Dispatcher
	logger     *logging.Logger
}

// NewInvocationHandler creates a Handler that feeds d.
func NewInvocationHandler(d Dispatcher, logger *logging.Logger) *InvocationHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &InvocationHandler{dispatcher: d, logger: logger.Component("ipc")}
}

// HandleInvoke implements Handler.
func (h *InvocationHandler) HandleInvoke(args []string, cwd string) error {
	inv := invocation.Parse(ResolveArgs(args, cwd))
	h.logger.Info().
		Str("kind", inv.Kind.String()).
		Int("files", len(inv.Paths)).
		Msg("Invocation forwarded from second instance")
	if !h.dispatcher.Handle(inv) {
		return ErrNotAccepted
	}
	return nil
}

// ResolveArgs makes relative path arguments absolute against cwd. Flags and
// URLs are left as they are.
func ResolveArgs(args []string, cwd string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		switch {
		case cwd == "",
			strings.HasPrefix(arg, "-"),
			invocation.IsURL(arg),
			filepath.IsAbs(arg):
			out[i] = arg
		default:
			out[i] = filepath.Join(cwd, arg)
		}
	}
	return out
}
