package ipc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/tinyimage/tinyimage/internal/constants"
	"github.com/tinyimage/tinyimage/internal/logging"
)

// Handler processes requests forwarded by a second instance.
type Handler interface {
	// HandleInvoke receives the sender's argv and working directory.
	HandleInvoke(args []string, cwd string) error
}

// Server handles IPC requests from second instances.
type Server struct {
	handler  Handler
	logger   *logging.Logger
	endpoint string
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server on the default per-user endpoint.
func NewServer(handler Handler, logger *logging.Logger) (*Server, error) {
	endpoint, err := DefaultEndpoint()
	if err != nil {
		return nil, err
	}
	return NewServerWithEndpoint(handler, logger, endpoint), nil
}

// NewServerWithEndpoint creates a server on a custom endpoint.
func NewServerWithEndpoint(handler Handler, logger *logging.Logger, endpoint string) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler:  handler,
		logger:   logger.Component("ipc"),
		endpoint: endpoint,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening. It returns ErrAlreadyRunning if a live primary
// already owns the endpoint.
func (s *Server) Start() error {
	listener, err := listen(s.endpoint)
	if err != nil {
		return err
	}
	s.listener = listener

	s.logger.Info().Str("endpoint", s.endpoint).Msg("IPC server started")

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop gracefully shuts down the IPC server.
func (s *Server) Stop() {
	s.logger.Debug().Msg("Stopping IPC server")
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.wg.Wait()
	cleanup(s.endpoint)
	s.logger.Info().Msg("IPC server stopped")
}

// Endpoint returns the socket path or pipe name.
func (s *Server) Endpoint() string {
	return s.endpoint
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Warn().Err(err).Msg("Failed to accept IPC connection")
				time.Sleep(50 * time.Millisecond)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(constants.IPCRequestTimeout))

	reader := bufio.NewReader(conn)
	data, err := reader.ReadBytes('\n')
	if err != nil {
		if err != io.EOF {
			s.logger.Warn().Err(err).Msg("Failed to read IPC request")
		}
		return
	}

	req, err := DecodeRequest(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to decode IPC request")
		s.sendResponse(conn, NewErrorResponse("invalid request format"))
		return
	}

	s.logger.Debug().
		Str("type", string(req.Type)).
		Int("args", len(req.Args)).
		Str("cwd", req.Cwd).
		Msg("Received IPC request")

	s.sendResponse(conn, s.handleRequest(req))
}

func (s *Server) handleRequest(req *Request) *Response {
	switch req.Type {
	case MsgPing:
		return NewOKResponse()

	case MsgInvoke:
		if s.handler == nil {
			return NewErrorResponse("no handler")
		}
		if err := s.handler.HandleInvoke(req.Args, req.Cwd); err != nil {
			return NewErrorResponse(err.Error())
		}
		return NewOKResponse()

	default:
		return NewErrorResponse(fmt.Sprintf("unknown message type: %s", req.Type))
	}
}

func (s *Server) sendResponse(conn net.Conn, resp *Response) {
	data, err := resp.Encode()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode IPC response")
		return
	}
	data = append(data, '\n')

	if _, err := conn.Write(data); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send IPC response")
	}
}
