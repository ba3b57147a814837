// Package protocol frames RPC runtime messages on the WebSocket.
//
// Every binary frame is
//
//	[4 bytes: MessageType (uint32, big-endian)][4 bytes: MessageNumber (uint32, big-endian)][N bytes: Payload]
//
// The message number correlates a response, or the elements of a stream, with
// the request that produced it. The payload is an opaque JSON document.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	headerSize = 8

	// MaxPayloadSize bounds a single frame payload.
	MaxPayloadSize = 10 * 1024 * 1024 // 10MB

	// MaxFrameSize is the largest frame a peer may send.
	MaxFrameSize = MaxPayloadSize + headerSize
)

// MessageType identifies the kind of RPC runtime message.
type MessageType uint32

const (
	TypeCreatePort MessageType = iota + 1
	TypeCreatePortResponse
	TypeRequestModule
	TypeRequestModuleResponse
	TypeRequest
	TypeResponse
	TypeStreamMessage
	TypeStreamAck
	TypeRemoteError
)

func (t MessageType) String() string {
	switch t {
	case TypeCreatePort:
		return "CreatePort"
	case TypeCreatePortResponse:
		return "CreatePortResponse"
	case TypeRequestModule:
		return "RequestModule"
	case TypeRequestModuleResponse:
		return "RequestModuleResponse"
	case TypeRequest:
		return "Request"
	case TypeResponse:
		return "Response"
	case TypeStreamMessage:
		return "StreamMessage"
	case TypeStreamAck:
		return "StreamAck"
	case TypeRemoteError:
		return "RemoteError"
	}
	return fmt.Sprintf("MessageType(%d)", uint32(t))
}

// Header is the fixed part of every frame.
type Header struct {
	Type          MessageType
	MessageNumber uint32
}

var ErrShortFrame = errors.New("data too short")

// Encode writes the header followed by the payload.
func Encode(msgType MessageType, messageNumber uint32, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload size %d exceeds maximum %d bytes", len(payload), MaxPayloadSize)
	}

	out := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(msgType))
	binary.BigEndian.PutUint32(out[4:8], messageNumber)
	copy(out[headerSize:], payload)
	return out, nil
}

// Decode splits a frame into its header and payload.
// The payload slice references the input data - do not modify it.
func Decode(data []byte) (Header, []byte, error) {
	if len(data) < headerSize {
		return Header{}, nil, ErrShortFrame
	}

	payloadSize := len(data) - headerSize
	if payloadSize > MaxPayloadSize {
		return Header{}, nil, fmt.Errorf("payload size %d exceeds maximum %d bytes", payloadSize, MaxPayloadSize)
	}

	h := Header{
		Type:          MessageType(binary.BigEndian.Uint32(data[0:4])),
		MessageNumber: binary.BigEndian.Uint32(data[4:8]),
	}
	return h, data[headerSize:], nil
}
