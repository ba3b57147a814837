package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/contract"
	"github.com/luciancaetano/socialnet/internal/metrics"
)

// stream translates every element of a raw stream before yielding it. The
// first error, including an error variant, ends the stream: the raw stream
// is closed and never pulled again.
type stream[T contract.Enveloped] struct {
	raw     RawStream
	method  string
	metrics *metrics.Metrics
	logger  *zap.Logger

	err error
}

var _ socialnet.Stream[contract.Errors] = (*stream[contract.Errors])(nil)

func openStream[T contract.Enveloped](ctx context.Context, s *Session, method string, req any) (socialnet.Stream[T], error) {
	service, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := service.Stream(ctx, method, req)
	if err != nil {
		return nil, err
	}

	return &stream[T]{
		raw:     raw,
		method:  method,
		metrics: s.cfg.Metrics,
		logger:  s.logger.With(zap.String("method", method)),
	}, nil
}

func (st *stream[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if st.err != nil {
		return zero, st.err
	}

	raw, err := st.raw.Next(ctx)
	if err != nil {
		// A cancelled pull does not end the stream
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		return zero, st.finish(err)
	}

	var element T
	if err := json.Unmarshal(raw, &element); err != nil {
		return zero, st.finish(fmt.Errorf("decode %s element: %w", st.method, err))
	}

	element, err = socialnet.Translate(element)
	if err != nil {
		return zero, st.finish(err)
	}

	st.metrics.ObserveElement(st.method)
	return element, nil
}

func (st *stream[T]) Close() error {
	if st.err != nil {
		return nil
	}
	st.finish(io.EOF)
	return nil
}

func (st *stream[T]) finish(err error) error {
	st.err = err
	if !errors.Is(err, io.EOF) {
		st.logger.Debug("stream ended", zap.Error(err))
	}
	st.metrics.ObserveStreamEnd(st.method, err)
	st.raw.Close()
	return err
}

// mapped projects every element of a stream.
type mapped[T, Out any] struct {
	socialnet.Stream[T]
	fn func(T) Out
}

func mapStream[T, Out any](s socialnet.Stream[T], err error, fn func(T) Out) (socialnet.Stream[Out], error) {
	if err != nil {
		return nil, err
	}
	return &mapped[T, Out]{Stream: s, fn: fn}, nil
}

func (m *mapped[T, Out]) Next(ctx context.Context) (Out, error) {
	v, err := m.Stream.Next(ctx)
	if err != nil {
		var zero Out
		return zero, err
	}
	return m.fn(v), nil
}
