// Package transport implements the client side of the rimecmd wire
// protocol: one Unix stream connection to the server, framed with
// internal/wire's length-agnostic JSON accumulator.
package transport

import (
	"encoding/json"
	"fmt"
	"net"

	"rimecmd/internal/wire"
)

// ReplyState is the result of one Client.ReadOne call: either a complete
// Reply decoded off the wire, or a signal that more bytes are needed before
// one is available.
type ReplyState struct {
	Reply      wire.Reply
	Incomplete bool
}

// Client owns the single connection to the rimecmd server and the partial
// read accumulator for framing replies off of it.
type Client struct {
	conn   *net.UnixConn
	framer wire.Framer
}

// Dial connects to the server listening on socketPath.
func Dial(socketPath string) (*Client, error) {
	addr, err := net.ResolveUnixAddr("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", socketPath, err)
	}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", socketPath, err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an already-established connection, e.g. one handed off
// by a test harness or an auto-spawn retry loop.
func NewClient(conn *net.UnixConn) *Client {
	return &Client{conn: conn}
}

// Fd exposes the connection's file descriptor for poller registration.
func (c *Client) Fd() int {
	raw, err := c.conn.SyscallConn()
	if err != nil {
		return -1
	}
	var fd int
	raw.Control(func(f uintptr) { fd = int(f) })
	return fd
}

// SendRequest marshals and writes one Request to the server.
func (c *Client) SendRequest(req wire.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("transport: marshal request: %w", err)
	}
	return c.SendBytes(data)
}

// SendBytes writes raw bytes to the server connection and flushes them,
// matching Client::send_bytes.
func (c *Client) SendBytes(b []byte) error {
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// ReadOne implements poller.Source[ReplyState]: it reads whatever bytes are
// currently available, feeds them to the framer, and reports either a
// complete Reply or Incomplete so the caller keeps waiting on the next
// readiness signal.
func (c *Client) ReadOne() (ReplyState, error) {
	buf := make([]byte, 4096)
	n, err := c.conn.Read(buf)
	if err != nil {
		return ReplyState{}, fmt.Errorf("transport: read: %w", err)
	}
	c.framer.Feed(buf[:n])

	var reply wire.Reply
	complete, err := wire.TryParse(&c.framer, &reply)
	if err != nil {
		return ReplyState{}, err
	}
	if !complete {
		return ReplyState{Incomplete: true}, nil
	}
	return ReplyState{Reply: reply}, nil
}

// Shutdown closes both halves of the connection, matching
// Client::shutdown(Shutdown::Both).
func (c *Client) Shutdown() error {
	return c.conn.Close()
}
