package ipc

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/tinyimage/tinyimage/internal/constants"
)

// Client sends requests to the primary instance.
type Client struct {
	timeout  time.Duration
	endpoint string
}

// NewClient creates a client for the default per-user endpoint.
func NewClient() (*Client, error) {
	endpoint, err := DefaultEndpoint()
	if err != nil {
		return nil, err
	}
	return NewClientWithEndpoint(endpoint), nil
}

// NewClientWithEndpoint creates a client for a custom endpoint.
func NewClientWithEndpoint(endpoint string) *Client {
	return &Client{
		timeout:  constants.IPCRequestTimeout,
		endpoint: endpoint,
	}
}

// SetTimeout sets the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Forward hands argv to the primary. It returns ErrNoPrimary when nothing
// is listening, in which case the caller should become the primary.
func (c *Client) Forward(ctx context.Context, args []string, cwd string) error {
	resp, err := c.sendRequest(ctx, NewInvokeRequest(args, cwd))
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("primary rejected invocation: %s", resp.Error)
	}
	return nil
}

// Ping checks if the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.sendRequest(ctx, NewRequest(MsgPing))
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("server error: %s", resp.Error)
	}
	return nil
}

func (c *Client) sendRequest(ctx context.Context, req *Request) (*Response, error) {
	dialCtx, cancel := context.WithTimeout(ctx, constants.IPCDialTimeout)
	defer cancel()

	conn, err := dial(dialCtx, c.endpoint)
	if err != nil {
		if isNoListener(err) {
			return nil, ErrNoPrimary
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	data, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	data = append(data, '\n')

	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	respData, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	resp, err := DecodeResponse(respData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}
