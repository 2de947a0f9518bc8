package dap

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	godap "github.com/google/go-dap"
)

const requestTimeout = 10 * time.Second

// Client provides the request/response DAP operations the backend needs.
// Responses are matched to requests by sequence number; events are delivered
// to the registered event handler from the read loop goroutine.
type Client struct {
	transport *Transport

	pendingRequests map[int]chan godap.Message
	mu              sync.Mutex

	eventHandler func(godap.Message)

	initialized     chan struct{}
	initializedOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a client over the given transport and starts its read
// loop.
func NewClient(transport *Transport) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		transport:       transport,
		pendingRequests: make(map[int]chan godap.Message),
		initialized:     make(chan struct{}),
		ctx:             ctx,
		cancel:          cancel,
	}

	c.wg.Add(1)
	go c.readLoop()

	return c
}

// SetEventHandler sets the handler for DAP events. Must be called before any
// request that can trigger events.
func (c *Client) SetEventHandler(handler func(godap.Message)) {
	c.eventHandler = handler
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		msg, err := c.transport.Receive()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				// Transport gone: the session is over. The backend learns
				// about it from the terminated event or the next request
				// failure.
			}
			return
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg godap.Message) {
	var requestSeq int
	var isResponse bool

	switch m := msg.(type) {
	case *godap.InitializeResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.LaunchResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.DisconnectResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.ConfigurationDoneResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.ThreadsResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.StackTraceResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.ScopesResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.VariablesResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.SetBreakpointsResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.ContinueResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.NextResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.StepInResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.StepOutResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.ErrorResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *godap.InitializedEvent:
		c.initializedOnce.Do(func() {
			close(c.initialized)
		})
		if c.eventHandler != nil {
			c.eventHandler(msg)
		}
		return
	}

	if isResponse {
		c.mu.Lock()
		if ch, ok := c.pendingRequests[requestSeq]; ok {
			ch <- msg
			delete(c.pendingRequests, requestSeq)
		}
		c.mu.Unlock()
		return
	}

	if c.eventHandler != nil {
		c.eventHandler(msg)
	}
}

// sendRequest sends a request with an assigned sequence number and waits for
// the matching response.
func (c *Client) sendRequest(ctx context.Context, req godap.RequestMessage, timeout time.Duration) (godap.Message, error) {
	seq := c.transport.NextSeq()

	switch r := req.(type) {
	case *godap.InitializeRequest:
		r.Seq = seq
	case *godap.LaunchRequest:
		r.Seq = seq
	case *godap.DisconnectRequest:
		r.Seq = seq
	case *godap.ConfigurationDoneRequest:
		r.Seq = seq
	case *godap.ThreadsRequest:
		r.Seq = seq
	case *godap.StackTraceRequest:
		r.Seq = seq
	case *godap.ScopesRequest:
		r.Seq = seq
	case *godap.VariablesRequest:
		r.Seq = seq
	case *godap.SetBreakpointsRequest:
		r.Seq = seq
	case *godap.ContinueRequest:
		r.Seq = seq
	case *godap.NextRequest:
		r.Seq = seq
	case *godap.StepInRequest:
		r.Seq = seq
	case *godap.StepOutRequest:
		r.Seq = seq
	}

	respCh := make(chan godap.Message, 1)
	c.mu.Lock()
	c.pendingRequests[seq] = respCh
	c.mu.Unlock()

	if err := c.transport.Send(req); err != nil {
		c.mu.Lock()
		delete(c.pendingRequests, seq)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-respCh:
		return resp, nil
	case <-time.After(timeout):
		c.mu.Lock()
		delete(c.pendingRequests, seq)
		c.mu.Unlock()
		return nil, fmt.Errorf("request timeout")
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pendingRequests, seq)
		c.mu.Unlock()
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

// Initialize sends the initialize request. Coordinates are negotiated
// 0-based so the backend's native coordinate system reaches the registry
// unchanged.
func (c *Client) Initialize(ctx context.Context, clientID, clientName string) (*godap.InitializeResponse, error) {
	req := &godap.InitializeRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "initialize",
		},
		Arguments: godap.InitializeRequestArguments{
			ClientID:                     clientID,
			ClientName:                   clientName,
			AdapterID:                    "dapguard",
			Locale:                       "en-US",
			LinesStartAt1:                false,
			ColumnsStartAt1:              false,
			PathFormat:                   "path",
			SupportsVariableType:         true,
			SupportsRunInTerminalRequest: false,
		},
	}

	resp, err := c.sendRequest(ctx, req, requestTimeout)
	if err != nil {
		return nil, err
	}

	initResp, ok := resp.(*godap.InitializeResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !initResp.Success {
		return nil, fmt.Errorf("initialize failed: %s", initResp.Message)
	}
	return initResp, nil
}

// WaitInitialized waits for the initialized event.
func (c *Client) WaitInitialized(timeout time.Duration) error {
	select {
	case <-c.initialized:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for initialized event")
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// LaunchAsync sends a launch request without waiting: some adapters hold the
// launch response until configurationDone. The returned channel receives the
// response.
func (c *Client) LaunchAsync(args map[string]any) (chan godap.Message, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal launch args: %w", err)
	}

	seq := c.transport.NextSeq()
	req := &godap.LaunchRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request", Seq: seq},
			Command:         "launch",
		},
		Arguments: argsJSON,
	}

	respCh := make(chan godap.Message, 1)
	c.mu.Lock()
	c.pendingRequests[seq] = respCh
	c.mu.Unlock()

	if err := c.transport.Send(req); err != nil {
		c.mu.Lock()
		delete(c.pendingRequests, seq)
		c.mu.Unlock()
		return nil, err
	}

	return respCh, nil
}

// WaitForLaunchResponse waits for the launch response on the channel.
func (c *Client) WaitForLaunchResponse(respCh chan godap.Message, timeout time.Duration) error {
	select {
	case resp := <-respCh:
		launchResp, ok := resp.(*godap.LaunchResponse)
		if !ok {
			return fmt.Errorf("unexpected response type: %T", resp)
		}
		if !launchResp.Success {
			return fmt.Errorf("launch failed: %s", launchResp.Message)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("launch response timeout")
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// ConfigurationDone signals that configuration is complete.
func (c *Client) ConfigurationDone(ctx context.Context) error {
	req := &godap.ConfigurationDoneRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "configurationDone",
		},
	}

	resp, err := c.sendRequest(ctx, req, requestTimeout)
	if err != nil {
		return err
	}
	configResp, ok := resp.(*godap.ConfigurationDoneResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	if !configResp.Success {
		return fmt.Errorf("configurationDone failed: %s", configResp.Message)
	}
	return nil
}

// Disconnect ends the debug session.
func (c *Client) Disconnect(ctx context.Context, terminateDebuggee bool) error {
	req := &godap.DisconnectRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "disconnect",
		},
		Arguments: &godap.DisconnectArguments{
			TerminateDebuggee: terminateDebuggee,
		},
	}

	resp, err := c.sendRequest(ctx, req, requestTimeout)
	if err != nil {
		return err
	}
	disconnectResp, ok := resp.(*godap.DisconnectResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	if !disconnectResp.Success {
		return fmt.Errorf("disconnect failed: %s", disconnectResp.Message)
	}
	return nil
}

// Threads gets all threads.
func (c *Client) Threads(ctx context.Context) ([]godap.Thread, error) {
	req := &godap.ThreadsRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "threads",
		},
	}

	resp, err := c.sendRequest(ctx, req, requestTimeout)
	if err != nil {
		return nil, err
	}
	threadsResp, ok := resp.(*godap.ThreadsResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !threadsResp.Success {
		return nil, fmt.Errorf("threads request failed: %s", threadsResp.Message)
	}
	return threadsResp.Body.Threads, nil
}

// StackTrace gets the stack trace for a thread.
func (c *Client) StackTrace(ctx context.Context, threadID, levels int) ([]godap.StackFrame, error) {
	req := &godap.StackTraceRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "stackTrace",
		},
		Arguments: godap.StackTraceArguments{
			ThreadId: threadID,
			Levels:   levels,
		},
	}

	resp, err := c.sendRequest(ctx, req, requestTimeout)
	if err != nil {
		return nil, err
	}
	stackResp, ok := resp.(*godap.StackTraceResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !stackResp.Success {
		return nil, fmt.Errorf("stackTrace request failed: %s", stackResp.Message)
	}
	return stackResp.Body.StackFrames, nil
}

// Scopes gets the scopes for a stack frame.
func (c *Client) Scopes(ctx context.Context, frameID int) ([]godap.Scope, error) {
	req := &godap.ScopesRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "scopes",
		},
		Arguments: godap.ScopesArguments{FrameId: frameID},
	}

	resp, err := c.sendRequest(ctx, req, requestTimeout)
	if err != nil {
		return nil, err
	}
	scopesResp, ok := resp.(*godap.ScopesResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !scopesResp.Success {
		return nil, fmt.Errorf("scopes request failed: %s", scopesResp.Message)
	}
	return scopesResp.Body.Scopes, nil
}

// Variables gets variables for a reference.
func (c *Client) Variables(ctx context.Context, variablesRef int) ([]godap.Variable, error) {
	req := &godap.VariablesRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "variables",
		},
		Arguments: godap.VariablesArguments{VariablesReference: variablesRef},
	}

	resp, err := c.sendRequest(ctx, req, requestTimeout)
	if err != nil {
		return nil, err
	}
	varsResp, ok := resp.(*godap.VariablesResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !varsResp.Success {
		return nil, fmt.Errorf("variables request failed: %s", varsResp.Message)
	}
	return varsResp.Body.Variables, nil
}

// SetBreakpoints replaces all breakpoints in a source file.
func (c *Client) SetBreakpoints(ctx context.Context, source godap.Source, breakpoints []godap.SourceBreakpoint) ([]godap.Breakpoint, error) {
	req := &godap.SetBreakpointsRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "setBreakpoints",
		},
		Arguments: godap.SetBreakpointsArguments{
			Source:      source,
			Breakpoints: breakpoints,
		},
	}

	resp, err := c.sendRequest(ctx, req, requestTimeout)
	if err != nil {
		return nil, err
	}
	bpResp, ok := resp.(*godap.SetBreakpointsResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !bpResp.Success {
		return nil, fmt.Errorf("setBreakpoints failed: %s", bpResp.Message)
	}
	return bpResp.Body.Breakpoints, nil
}

// Continue continues execution of a thread.
func (c *Client) Continue(ctx context.Context, threadID int) error {
	req := &godap.ContinueRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "continue",
		},
		Arguments: godap.ContinueArguments{ThreadId: threadID},
	}

	resp, err := c.sendRequest(ctx, req, requestTimeout)
	if err != nil {
		return err
	}
	contResp, ok := resp.(*godap.ContinueResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	if !contResp.Success {
		return fmt.Errorf("continue failed: %s", contResp.Message)
	}
	return nil
}

// Next steps over the current line.
func (c *Client) Next(ctx context.Context, threadID int) error {
	req := &godap.NextRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "next",
		},
		Arguments: godap.NextArguments{ThreadId: threadID},
	}

	resp, err := c.sendRequest(ctx, req, requestTimeout)
	if err != nil {
		return err
	}
	nextResp, ok := resp.(*godap.NextResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	if !nextResp.Success {
		return fmt.Errorf("next failed: %s", nextResp.Message)
	}
	return nil
}

// StepIn steps into a call.
func (c *Client) StepIn(ctx context.Context, threadID int) error {
	req := &godap.StepInRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "stepIn",
		},
		Arguments: godap.StepInArguments{ThreadId: threadID},
	}

	resp, err := c.sendRequest(ctx, req, requestTimeout)
	if err != nil {
		return err
	}
	stepResp, ok := resp.(*godap.StepInResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	if !stepResp.Success {
		return fmt.Errorf("stepIn failed: %s", stepResp.Message)
	}
	return nil
}

// StepOut steps out of the current function.
func (c *Client) StepOut(ctx context.Context, threadID int) error {
	req := &godap.StepOutRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "stepOut",
		},
		Arguments: godap.StepOutArguments{ThreadId: threadID},
	}

	resp, err := c.sendRequest(ctx, req, requestTimeout)
	if err != nil {
		return err
	}
	stepResp, ok := resp.(*godap.StepOutResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	if !stepResp.Success {
		return fmt.Errorf("stepOut failed: %s", stepResp.Message)
	}
	return nil
}

// Close shuts down the client and its read loop.
func (c *Client) Close() error {
	c.cancel()
	err := c.transport.Close()
	c.wg.Wait()
	return err
}
