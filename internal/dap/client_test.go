package dap

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	godap "github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter is a minimal in-process DAP server for client tests. It
// answers initialize, threads, setBreakpoints and disconnect.
type fakeAdapter struct {
	listener net.Listener

	gotInitialize chan godap.InitializeRequestArguments
}

func newFakeAdapter(t *testing.T) *fakeAdapter {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	fa := &fakeAdapter{
		listener:      listener,
		gotInitialize: make(chan godap.InitializeRequestArguments, 1),
	}
	go fa.serve()
	t.Cleanup(func() { listener.Close() })
	return fa
}

func (fa *fakeAdapter) addr() string { return fa.listener.Addr().String() }

func (fa *fakeAdapter) serve() {
	conn, err := fa.listener.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	seq := 1000

	send := func(msg godap.Message) {
		if err := godap.WriteProtocolMessage(writer, msg); err == nil {
			_ = writer.Flush()
		}
		seq++
	}

	for {
		msg, err := godap.ReadProtocolMessage(reader)
		if err != nil {
			return
		}

		switch req := msg.(type) {
		case *godap.InitializeRequest:
			fa.gotInitialize <- req.Arguments
			send(&godap.InitializeResponse{
				Response: godap.Response{
					ProtocolMessage: godap.ProtocolMessage{Seq: seq, Type: "response"},
					Command:         "initialize",
					RequestSeq:      req.Seq,
					Success:         true,
				},
			})
			send(&godap.InitializedEvent{
				Event: godap.Event{
					ProtocolMessage: godap.ProtocolMessage{Seq: seq, Type: "event"},
					Event:           "initialized",
				},
			})
		case *godap.LaunchRequest:
			send(&godap.LaunchResponse{
				Response: godap.Response{
					ProtocolMessage: godap.ProtocolMessage{Seq: seq, Type: "response"},
					Command:         "launch",
					RequestSeq:      req.Seq,
					Success:         true,
				},
			})
		case *godap.ConfigurationDoneRequest:
			send(&godap.ConfigurationDoneResponse{
				Response: godap.Response{
					ProtocolMessage: godap.ProtocolMessage{Seq: seq, Type: "response"},
					Command:         "configurationDone",
					RequestSeq:      req.Seq,
					Success:         true,
				},
			})
		case *godap.ThreadsRequest:
			send(&godap.ThreadsResponse{
				Response: godap.Response{
					ProtocolMessage: godap.ProtocolMessage{Seq: seq, Type: "response"},
					Command:         "threads",
					RequestSeq:      req.Seq,
					Success:         true,
				},
				Body: godap.ThreadsResponseBody{
					Threads: []godap.Thread{{Id: 1, Name: "main"}},
				},
			})
		case *godap.SetBreakpointsRequest:
			verified := make([]godap.Breakpoint, len(req.Arguments.Breakpoints))
			for i, bp := range req.Arguments.Breakpoints {
				verified[i] = godap.Breakpoint{Verified: true, Line: bp.Line}
			}
			send(&godap.SetBreakpointsResponse{
				Response: godap.Response{
					ProtocolMessage: godap.ProtocolMessage{Seq: seq, Type: "response"},
					Command:         "setBreakpoints",
					RequestSeq:      req.Seq,
					Success:         true,
				},
				Body: godap.SetBreakpointsResponseBody{Breakpoints: verified},
			})
		case *godap.DisconnectRequest:
			send(&godap.DisconnectResponse{
				Response: godap.Response{
					ProtocolMessage: godap.ProtocolMessage{Seq: seq, Type: "response"},
					Command:         "disconnect",
					RequestSeq:      req.Seq,
					Success:         true,
				},
			})
			return
		}
	}
}

func newTestClient(t *testing.T, fa *fakeAdapter) *Client {
	t.Helper()
	transport, err := NewTCPTransport(fa.addr())
	require.NoError(t, err)
	client := NewClient(transport)
	t.Cleanup(func() { client.Close() })
	return client
}

// TestClient_Initialize_ZeroBasedCoordinates verifies the client negotiates
// 0-based lines and columns with the adapter.
func TestClient_Initialize_ZeroBasedCoordinates(t *testing.T) {
	fa := newFakeAdapter(t)
	client := newTestClient(t, fa)

	resp, err := client.Initialize(context.Background(), "test", "test")
	require.NoError(t, err)
	assert.True(t, resp.Success)

	args := <-fa.gotInitialize
	assert.False(t, args.LinesStartAt1)
	assert.False(t, args.ColumnsStartAt1)

	require.NoError(t, client.WaitInitialized(2*time.Second))
}

func TestClient_Threads(t *testing.T) {
	fa := newFakeAdapter(t)
	client := newTestClient(t, fa)

	_, err := client.Initialize(context.Background(), "test", "test")
	require.NoError(t, err)

	threads, err := client.Threads(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, 1, threads[0].Id)
}

func TestClient_SetBreakpoints(t *testing.T) {
	fa := newFakeAdapter(t)
	client := newTestClient(t, fa)

	bps, err := client.SetBreakpoints(context.Background(),
		godap.Source{Path: "/ws/main.go"},
		[]godap.SourceBreakpoint{{Line: 9}, {Line: 14}})
	require.NoError(t, err)
	require.Len(t, bps, 2)
	assert.True(t, bps[0].Verified)
	assert.Equal(t, 9, bps[0].Line)
}

func TestClient_Disconnect(t *testing.T) {
	fa := newFakeAdapter(t)
	client := newTestClient(t, fa)

	require.NoError(t, client.Disconnect(context.Background(), true))
}

func TestTransport_NextSeqMonotonic(t *testing.T) {
	fa := newFakeAdapter(t)
	transport, err := NewTCPTransport(fa.addr())
	require.NoError(t, err)
	defer transport.Close()

	a := transport.NextSeq()
	b := transport.NextSeq()
	assert.Equal(t, a+1, b)
}
