package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/contract"
)

// call invokes a unary method and runs the response through the error
// translator. On success the response is returned unchanged.
func call[Resp contract.Enveloped](ctx context.Context, s *Session, method string, req any) (Resp, error) {
	var resp Resp

	service, err := s.ready(ctx)
	if err != nil {
		return resp, err
	}

	start := time.Now()
	resp, err = invoke[Resp](ctx, service, method, req)
	s.cfg.Metrics.ObserveCall(method, start, err)

	if err != nil {
		s.logger.Debug("call failed", zap.String("method", method), zap.Error(err))
		var zero Resp
		return zero, err
	}
	return resp, nil
}

func invoke[Resp contract.Enveloped](ctx context.Context, service Service, method string, req any) (Resp, error) {
	var resp Resp

	raw, err := service.Call(ctx, method, req)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, fmt.Errorf("decode %s response: %w", method, err)
	}
	return socialnet.Translate(resp)
}

// project extracts the success field of a translated response. A response
// without an error variant and without the field is incomplete; the error
// names what the response was for.
func project[Resp any, Out any](resp Resp, err error, what string, field func(Resp) *Out) (Out, error) {
	var zero Out
	if err != nil {
		return zero, err
	}
	v := field(resp)
	if v == nil {
		return zero, fmt.Errorf("%s: %w", what, socialnet.ErrIncompleteResponse)
	}
	return *v, nil
}
