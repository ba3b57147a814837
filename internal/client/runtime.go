package client

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/internal/rpc"
)

// Runtime is the RPC runtime a session is bootstrapped on.
type Runtime interface {
	CreatePort(ctx context.Context, name string) (Port, error)
}

// Port is a logical sub-channel of the runtime.
type Port interface {
	LoadModule(ctx context.Context, name string) (Service, error)
}

// Service is a loaded service contract.
type Service interface {
	Call(ctx context.Context, method string, req any) (json.RawMessage, error)
	Stream(ctx context.Context, method string, req any) (RawStream, error)
}

// RawStream yields undecoded stream elements.
type RawStream interface {
	Next(ctx context.Context) (json.RawMessage, error)
	Close() error
}

// RuntimeFactory performs the runtime handshake over a transport. It is
// called right after the transport connected.
type RuntimeFactory func(ctx context.Context, t socialnet.Transport) (Runtime, error)

// RPCRuntime is the RuntimeFactory of the internal/rpc runtime.
func RPCRuntime(logger *zap.Logger) RuntimeFactory {
	return func(ctx context.Context, t socialnet.Transport) (Runtime, error) {
		c, err := rpc.NewClient(ctx, t, logger)
		if err != nil {
			return nil, err
		}
		return rpcRuntime{c}, nil
	}
}

type rpcRuntime struct {
	client *rpc.Client
}

func (r rpcRuntime) CreatePort(ctx context.Context, name string) (Port, error) {
	p, err := r.client.CreatePort(ctx, name)
	if err != nil {
		return nil, err
	}
	return rpcPort{p}, nil
}

type rpcPort struct {
	port *rpc.Port
}

func (p rpcPort) LoadModule(ctx context.Context, name string) (Service, error) {
	m, err := p.port.LoadModule(ctx, name)
	if err != nil {
		return nil, err
	}
	return rpcService{m}, nil
}

type rpcService struct {
	module *rpc.RemoteModule
}

func (s rpcService) Call(ctx context.Context, method string, req any) (json.RawMessage, error) {
	return s.module.Call(ctx, method, req)
}

func (s rpcService) Stream(ctx context.Context, method string, req any) (RawStream, error) {
	st, err := s.module.Stream(ctx, method, req)
	if err != nil {
		return nil, err
	}
	return st, nil
}
