// Package dap implements the debugger backend adapter over the Debug
// Adapter Protocol.
//
// The package provides:
//   - Transport: Content-Length framed message exchange over TCP
//   - Client: request/response DAP operations with an event callback
//   - Backend: session lifecycle, the backend-held breakpoint table, and the
//     event stream the session registry consumes
//
// All coordinates on this side of the gateway are 0-based: the client
// initializes the adapter with linesStartAt1=false and columnsStartAt1=false.
// The protocol is described at: https://microsoft.github.io/debug-adapter-protocol/
package dap

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	godap "github.com/google/go-dap"
)

// Transport handles framed communication with a DAP server over TCP.
type Transport struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	mu     sync.Mutex
	seq    int
}

// NewTCPTransport connects to a DAP server at the given address.
func NewTCPTransport(address string) (*Transport, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DAP server at %s: %w", address, err)
	}

	return &Transport{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		seq:    1,
	}, nil
}

// NextSeq returns the next request sequence number.
func (t *Transport) NextSeq() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.seq
	t.seq++
	return seq
}

// Send writes one DAP message and flushes it.
func (t *Transport) Send(msg godap.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := godap.WriteProtocolMessage(t.writer, msg); err != nil {
		return fmt.Errorf("failed to write DAP message: %w", err)
	}
	if err := t.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush DAP message: %w", err)
	}
	return nil
}

// Receive reads one DAP message.
func (t *Transport) Receive() (godap.Message, error) {
	msg, err := godap.ReadProtocolMessage(t.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read DAP message: %w", err)
	}
	return msg, nil
}

// Close closes the connection.
func (t *Transport) Close() error {
	return t.conn.Close()
}
