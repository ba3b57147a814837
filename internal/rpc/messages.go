// Package rpc is the RPC runtime spoken over a socialnet.Transport.
//
// A session multiplexes requests by message number (see internal/protocol).
// The client opens named ports, loads a module on a port to learn its
// procedure ids, then issues unary or server-streaming requests.
//
//	Client                                   Server
//	CreatePort{portName}            ──►
//	                                ◄──      CreatePortResponse{portId}
//	RequestModule{portId, module}   ──►
//	                                ◄──      RequestModuleResponse{procedures}
//	Request{portId, procedureId}    ──►
//	                                ◄──      Response{payload} | RemoteError
//	                                ◄──      StreamMessage{seq=1}
//	StreamAck{seq=1}                ──►
//	                                ◄──      StreamMessage{seq=2}
//	StreamAck{seq=2}                ──►
//	                                ◄──      StreamMessage{closed}
//
// A streaming procedure never has more than one element in flight: the server
// waits for the ack of an element before sending the next one.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownModule    = errors.New("unknown module")
	ErrUnknownProcedure = errors.New("unknown procedure")
	ErrUnknownPort      = errors.New("unknown port")
	ErrUnexpectedFrame  = errors.New("unexpected frame")

	errStreamClosed = errors.New("stream closed by peer")
)

// Remote error codes.
const (
	CodeUnknownPort      = 1
	CodeUnknownModule    = 2
	CodeUnknownProcedure = 3
	CodeProcedureFailed  = 4
	CodeBadRequest       = 5
)

// RemoteError is a failure reported by the server runtime itself, as opposed
// to an error variant inside a Response Envelope.
type RemoteError struct {
	Code    int    `json:"errorCode"`
	Message string `json:"errorMessage"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

type createPort struct {
	PortName string `json:"portName"`
}

type createPortResponse struct {
	PortID uint32 `json:"portId"`
}

type requestModule struct {
	PortID     uint32 `json:"portId"`
	ModuleName string `json:"moduleName"`
}

type procedure struct {
	ProcedureID   uint32 `json:"procedureId"`
	ProcedureName string `json:"procedureName"`
}

type requestModuleResponse struct {
	PortID     uint32      `json:"portId"`
	ModuleName string      `json:"moduleName"`
	Procedures []procedure `json:"procedures"`
}

type request struct {
	PortID      uint32          `json:"portId"`
	ProcedureID uint32          `json:"procedureId"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

type response struct {
	Payload json.RawMessage `json:"payload,omitempty"`
}

type streamMessage struct {
	PortID     uint32          `json:"portId"`
	SequenceID uint32          `json:"sequenceId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Closed     bool            `json:"closed,omitempty"`
}

type streamAck struct {
	PortID     uint32 `json:"portId"`
	SequenceID uint32 `json:"sequenceId"`
	Closed     bool   `json:"closed,omitempty"`
}
