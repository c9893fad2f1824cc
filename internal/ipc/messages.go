// Package ipc forwards invocations from a second instance to the running
// primary instance.
//
// The primary listens on a per-user endpoint (a Unix domain socket, or a
// named pipe on Windows). Messages are newline-delimited JSON, one request
// and one response per connection.
package ipc

import (
	"encoding/json"
	"errors"
)

// ErrNoPrimary is returned by Client.Forward when no primary is listening.
var ErrNoPrimary = errors.New("no running instance")

// ErrAlreadyRunning is returned by Server.Start when another primary owns
// the endpoint.
var ErrAlreadyRunning = errors.New("another instance is already listening")

// MessageType identifies the type of IPC message.
type MessageType string

const (
	// Request types (client -> server)
	MsgInvoke MessageType = "Invoke"
	MsgPing   MessageType = "Ping"

	// Response types (server -> client)
	MsgOK    MessageType = "OK"
	MsgError MessageType = "Error"
)

// Request represents an IPC request from client to server.
type Request struct {
	Type MessageType `json:"type"`
	// Args is the sender's argv without the program path.
	Args []string `json:"args,omitempty"`
	// Cwd is the sender's working directory, for resolving relative paths.
	Cwd string `json:"cwd,omitempty"`
}

// Response represents an IPC response from server to client.
type Response struct {
	Type    MessageType `json:"type"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
}

// NewRequest creates a new IPC request.
func NewRequest(msgType MessageType) *Request {
	return &Request{Type: msgType}
}

// NewInvokeRequest creates a request carrying a second instance's argv.
func NewInvokeRequest(args []string, cwd string) *Request {
	return &Request{Type: MsgInvoke, Args: args, Cwd: cwd}
}

// NewOKResponse creates a success response.
func NewOKResponse() *Response {
	return &Response{Type: MsgOK, Success: true}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(err string) *Response {
	return &Response{Type: MsgError, Success: false, Error: err}
}

// Encode serializes a request to JSON.
func (r *Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Encode serializes a response to JSON.
func (r *Response) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRequest deserializes a request from JSON.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodeResponse deserializes a response from JSON.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
