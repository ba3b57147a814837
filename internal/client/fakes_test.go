package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/luciancaetano/socialnet"
)

// recorder keeps the order in which bootstrap steps happened.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// asyncTransport fires connect from another goroutine, after Connect
// returned, the way a browser socket does.
type asyncTransport struct {
	rec *recorder
	// dialing runs synchronously at the start of Connect.
	dialing func()

	mu        sync.Mutex
	connected bool
	closed    bool
	onConnect []func()
	onClose   []func()
	onError   []func(error)
	frames    [][]byte

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ socialnet.Transport = (*asyncTransport)(nil)

func newAsyncTransport(rec *recorder) *asyncTransport {
	return &asyncTransport{rec: rec, ready: make(chan struct{}), done: make(chan struct{})}
}

func (f *asyncTransport) ID() string             { return "async" }
func (f *asyncTransport) Ready() <-chan struct{} { return f.ready }
func (f *asyncTransport) Done() <-chan struct{}  { return f.done }
func (f *asyncTransport) OnMessage(func([]byte)) {}

func (f *asyncTransport) Connect(ctx context.Context) error {
	if f.dialing != nil {
		f.dialing()
	}
	f.rec.add("connect called")
	go func() {
		f.mu.Lock()
		f.connected = true
		handlers := f.onConnect
		f.onConnect = nil
		f.mu.Unlock()

		f.rec.add("connect fired")
		for _, h := range handlers {
			h()
		}
		close(f.ready)
	}()
	return nil
}

func (f *asyncTransport) Send(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected || f.closed {
		return socialnet.ErrNotConnected
	}
	f.frames = append(f.frames, data)
	f.rec.add("frame sent")
	return nil
}

func (f *asyncTransport) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.connected = false
		handlers := f.onClose
		f.mu.Unlock()

		close(f.done)
		for _, h := range handlers {
			h()
		}
	})
	return nil
}

func (f *asyncTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *asyncTransport) OnConnect(h func()) {
	f.mu.Lock()
	if f.connected {
		f.mu.Unlock()
		h()
		return
	}
	f.onConnect = append(f.onConnect, h)
	f.mu.Unlock()
}

func (f *asyncTransport) OnClose(h func()) {
	f.mu.Lock()
	f.onClose = append(f.onClose, h)
	f.mu.Unlock()
}

func (f *asyncTransport) OnError(h func(error)) {
	f.mu.Lock()
	f.onError = append(f.onError, h)
	f.mu.Unlock()
}

func (f *asyncTransport) fail(err error) {
	f.mu.Lock()
	handlers := f.onError
	f.mu.Unlock()
	for _, h := range handlers {
		h(err)
	}
}

func (f *asyncTransport) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

// fakeRuntime serves canned responses per method.
type fakeRuntime struct {
	rec        *recorder
	transport  socialnet.Transport
	portErr    error
	moduleErr  error
	service    *fakeService
	loadedName string
}

func (r *fakeRuntime) factory() RuntimeFactory {
	return func(ctx context.Context, t socialnet.Transport) (Runtime, error) {
		select {
		case <-t.Ready():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		r.rec.add("runtime ready")
		return r, nil
	}
}

func (r *fakeRuntime) CreatePort(ctx context.Context, name string) (Port, error) {
	if r.portErr != nil {
		return nil, r.portErr
	}
	r.rec.add("port " + name)
	return r, nil
}

func (r *fakeRuntime) LoadModule(ctx context.Context, name string) (Service, error) {
	if r.moduleErr != nil {
		return nil, r.moduleErr
	}
	r.loadedName = name
	r.rec.add("module " + name)
	return r.service, nil
}

type fakeService struct {
	mu       sync.Mutex
	requests map[string][]json.RawMessage
	unary    map[string]string
	streams  map[string]*fakeRawStream
}

func newFakeService() *fakeService {
	return &fakeService{
		requests: make(map[string][]json.RawMessage),
		unary:    make(map[string]string),
		streams:  make(map[string]*fakeRawStream),
	}
}

func (s *fakeService) record(method string, req any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.requests[method] = append(s.requests[method], data)
	s.mu.Unlock()
	return nil
}

func (s *fakeService) lastRequest(method string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	reqs := s.requests[method]
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

func (s *fakeService) Call(ctx context.Context, method string, req any) (json.RawMessage, error) {
	if err := s.record(method, req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	resp, ok := s.unary[method]
	s.mu.Unlock()
	if !ok {
		return nil, errors.New("no response for " + method)
	}
	return json.RawMessage(resp), nil
}

func (s *fakeService) Stream(ctx context.Context, method string, req any) (RawStream, error) {
	if err := s.record(method, req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	st, ok := s.streams[method]
	s.mu.Unlock()
	if !ok {
		return nil, errors.New("no stream for " + method)
	}
	return st, nil
}

// fakeRawStream yields its elements then io.EOF, counting pulls.
type fakeRawStream struct {
	mu       sync.Mutex
	elements []string
	pulls    int
	closed   bool
	endErr   error
}

func (s *fakeRawStream) Next(ctx context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulls++
	if s.closed {
		return nil, io.EOF
	}
	if len(s.elements) == 0 {
		if s.endErr != nil {
			return nil, s.endErr
		}
		return nil, io.EOF
	}
	next := s.elements[0]
	s.elements = s.elements[1:]
	return json.RawMessage(next), nil
}

func (s *fakeRawStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeRawStream) stats() (pulls int, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulls, s.closed
}
