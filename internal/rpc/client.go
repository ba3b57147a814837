package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/internal/protocol"
)

type frame struct {
	header  protocol.Header
	payload []byte
}

// Client is the caller side of an RPC session. Many goroutines may issue
// calls concurrently over the single transport; each request gets its own
// message number and the transport's read loop routes replies back to the
// waiting caller.
type Client struct {
	transport socialnet.Transport
	logger    *zap.Logger

	number  atomic.Uint32
	pending sync.Map // map[uint32]chan frame
	streams sync.Map // map[uint32]*Stream

	closed    chan struct{}
	closeOnce sync.Once
}

// NewClient attaches to t and blocks until the transport is open. t may be
// connected before or after NewClient is called.
func NewClient(ctx context.Context, t socialnet.Transport, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		transport: t,
		logger:    logger.With(zap.String("transport_id", t.ID())),
		closed:    make(chan struct{}),
	}

	t.OnMessage(c.handleFrame)
	t.OnClose(c.fail)

	select {
	case <-t.Ready():
		return c, nil
	case <-t.Done():
		return nil, socialnet.ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the underlying transport closes.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// CreatePort opens a named logical port on the session.
func (c *Client) CreatePort(ctx context.Context, name string) (*Port, error) {
	payload, err := c.roundTrip(ctx, protocol.TypeCreatePort, createPort{PortName: name}, protocol.TypeCreatePortResponse)
	if err != nil {
		return nil, fmt.Errorf("create port %q: %w", name, err)
	}

	var resp createPortResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("create port %q: %w", name, err)
	}

	c.logger.Debug("port created", zap.String("port", name), zap.Uint32("port_id", resp.PortID))
	return &Port{client: c, id: resp.PortID, name: name}, nil
}

func (c *Client) send(ctx context.Context, msgType protocol.MessageType, number uint32, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	encoded, err := protocol.Encode(msgType, number, data)
	if err != nil {
		return err
	}
	return c.transport.Send(ctx, encoded)
}

// roundTrip sends one message and waits for the reply carrying the same
// message number.
func (c *Client) roundTrip(ctx context.Context, msgType protocol.MessageType, v any, want protocol.MessageType) ([]byte, error) {
	number := c.number.Add(1)
	ch := make(chan frame, 1)

	// Register before sending so the read loop cannot miss the reply
	c.pending.Store(number, ch)
	defer c.pending.Delete(number)

	select {
	case <-c.closed:
		return nil, socialnet.ErrConnectionClosed
	default:
	}

	if err := c.send(ctx, msgType, number, v); err != nil {
		return nil, err
	}

	select {
	case f := <-ch:
		switch f.header.Type {
		case want:
			return f.payload, nil
		case protocol.TypeRemoteError:
			return nil, decodeRemoteError(f.payload)
		default:
			return nil, fmt.Errorf("%w: got %v, want %v", ErrUnexpectedFrame, f.header.Type, want)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, socialnet.ErrConnectionClosed
	}
}

// handleFrame runs on the transport read loop and routes a frame to the
// stream or call waiting for its message number.
func (c *Client) handleFrame(data []byte) {
	header, payload, err := protocol.Decode(data)
	if err != nil {
		c.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	owned := make([]byte, len(payload))
	copy(owned, payload)
	f := frame{header: header, payload: owned}

	if s, ok := c.streams.Load(header.MessageNumber); ok {
		s.(*Stream).deliver(f)
		return
	}

	if ch, ok := c.pending.LoadAndDelete(header.MessageNumber); ok {
		ch.(chan frame) <- f
		return
	}

	c.logger.Debug("dropping unsolicited frame",
		zap.Stringer("type", header.Type),
		zap.Uint32("message_number", header.MessageNumber))
}

// fail is called once the transport closes: every waiting call and stream
// observes ErrConnectionClosed.
func (c *Client) fail() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.logger.Debug("rpc session closed")
	})
}

func decodeRemoteError(payload []byte) error {
	var remote RemoteError
	if err := json.Unmarshal(payload, &remote); err != nil {
		return fmt.Errorf("%w: undecodable remote error: %v", ErrUnexpectedFrame, err)
	}
	return &remote
}

// Port is a logical sub-channel of the session.
type Port struct {
	client *Client
	id     uint32
	name   string
}

func (p *Port) ID() uint32 {
	return p.id
}

func (p *Port) Name() string {
	return p.name
}

// LoadModule resolves the procedures of a module exposed on the port.
func (p *Port) LoadModule(ctx context.Context, name string) (*RemoteModule, error) {
	payload, err := p.client.roundTrip(ctx, protocol.TypeRequestModule,
		requestModule{PortID: p.id, ModuleName: name}, protocol.TypeRequestModuleResponse)
	if err != nil {
		return nil, fmt.Errorf("load module %q: %w", name, err)
	}

	var resp requestModuleResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("load module %q: %w", name, err)
	}

	procedures := make(map[string]uint32, len(resp.Procedures))
	for _, proc := range resp.Procedures {
		procedures[proc.ProcedureName] = proc.ProcedureID
	}

	return &RemoteModule{port: p, name: name, procedures: procedures}, nil
}

// RemoteModule is a loaded service: a set of named procedures on a port.
type RemoteModule struct {
	port       *Port
	name       string
	procedures map[string]uint32
}

func (m *RemoteModule) Name() string {
	return m.name
}

// Procedures lists the procedure names exposed by the module.
func (m *RemoteModule) Procedures() []string {
	names := make([]string, 0, len(m.procedures))
	for name := range m.procedures {
		names = append(names, name)
	}
	return names
}

func (m *RemoteModule) request(method string, req any) (request, error) {
	id, ok := m.procedures[method]
	if !ok {
		return request{}, fmt.Errorf("%w: %s.%s", ErrUnknownProcedure, m.name, method)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return request{}, fmt.Errorf("encode %s request: %w", method, err)
	}
	return request{PortID: m.port.id, ProcedureID: id, Payload: payload}, nil
}

// Call invokes a unary procedure and returns the raw response payload.
func (m *RemoteModule) Call(ctx context.Context, method string, req any) (json.RawMessage, error) {
	r, err := m.request(method, req)
	if err != nil {
		return nil, err
	}

	payload, err := m.port.client.roundTrip(ctx, protocol.TypeRequest, r, protocol.TypeResponse)
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	return resp.Payload, nil
}

// Stream invokes a server-streaming procedure. Elements are pulled with
// Stream.Next.
func (m *RemoteModule) Stream(ctx context.Context, method string, req any) (*Stream, error) {
	r, err := m.request(method, req)
	if err != nil {
		return nil, err
	}

	c := m.port.client
	number := c.number.Add(1)
	s := newStream(c, m.port.id, number)

	// Register before sending so the first element cannot be missed
	c.streams.Store(number, s)

	if err := c.send(ctx, protocol.TypeRequest, number, r); err != nil {
		c.streams.Delete(number)
		return nil, err
	}
	return s, nil
}
