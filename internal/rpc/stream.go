package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/internal/protocol"
)

// Stream is the caller side of a server-streaming request. It is not safe
// for concurrent use; a stream is pulled by one goroutine.
type Stream struct {
	client *Client
	portID uint32
	number uint32

	frames chan frame

	lastSeq uint32
	needAck bool

	mu       sync.Mutex
	finished bool
	err      error
	done     chan struct{}
}

func newStream(c *Client, portID, number uint32) *Stream {
	return &Stream{
		client: c,
		portID: portID,
		number: number,
		frames: make(chan frame, 2),
		done:   make(chan struct{}),
	}
}

// deliver runs on the transport read loop. The server sends at most one
// element before it is acknowledged, plus the closing message, so the
// buffer never fills while the stream is open.
func (s *Stream) deliver(f frame) {
	select {
	case s.frames <- f:
	case <-s.done:
	}
}

// Next returns the payload of the next element. It acknowledges the
// previous element first, which lets the server produce the next one.
// Next returns io.EOF at the end of the stream.
func (s *Stream) Next(ctx context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	if s.finished {
		err := s.err
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	if s.needAck {
		s.needAck = false
		ack := streamAck{PortID: s.portID, SequenceID: s.lastSeq}
		if err := s.client.send(ctx, protocol.TypeStreamAck, s.number, ack); err != nil {
			return nil, s.finish(err)
		}
	}

	select {
	case f := <-s.frames:
		return s.handle(f)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.client.closed:
		return nil, s.finish(socialnet.ErrConnectionClosed)
	}
}

func (s *Stream) handle(f frame) (json.RawMessage, error) {
	switch f.header.Type {
	case protocol.TypeStreamMessage:
		var msg streamMessage
		if err := json.Unmarshal(f.payload, &msg); err != nil {
			return nil, s.finish(fmt.Errorf("decode stream message: %w", err))
		}
		if msg.Closed {
			return nil, s.finish(io.EOF)
		}
		s.lastSeq = msg.SequenceID
		s.needAck = true
		return msg.Payload, nil
	case protocol.TypeRemoteError:
		return nil, s.finish(decodeRemoteError(f.payload))
	default:
		return nil, s.finish(fmt.Errorf("%w: %v on a stream", ErrUnexpectedFrame, f.header.Type))
	}
}

// Close stops the stream. The server is told to stop producing unless the
// stream already ended.
func (s *Stream) Close() error {
	s.mu.Lock()
	finished := s.finished
	s.mu.Unlock()
	if finished {
		return nil
	}

	ack := streamAck{PortID: s.portID, SequenceID: s.lastSeq, Closed: true}
	s.client.send(context.Background(), protocol.TypeStreamAck, s.number, ack)
	s.finish(io.EOF)
	return nil
}

// finish records the terminal error once and unregisters the stream.
func (s *Stream) finish(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finished {
		s.finished = true
		s.err = err
		close(s.done)
		s.client.streams.Delete(s.number)
	}
	return s.err
}
