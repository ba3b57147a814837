package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/internal/rpc"
	"github.com/luciancaetano/socialnet/internal/websocket"
)

type echo struct {
	Text string `json:"text"`
}

func startServer(t *testing.T, cfg *rpc.ServerConfig, modules ...*rpc.Module) *httptest.Server {
	t.Helper()

	if cfg == nil {
		cfg = &rpc.ServerConfig{}
	}
	cfg.RateLimitConfig = websocket.NoRateLimit()
	cfg.CheckOrigin = websocket.AllOrigins()

	server := rpc.NewServer(cfg)
	for _, m := range modules {
		server.Register(m)
	}

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server, onConnect func(socialnet.Transport)) (*websocket.Transport, *rpc.Client) {
	t.Helper()

	transport := websocket.NewTransport("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	t.Cleanup(func() { transport.Close() })

	if onConnect != nil {
		transport.OnConnect(func() { onConnect(transport) })
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, transport.Connect(ctx))
	client, err := rpc.NewClient(ctx, transport, nil)
	require.NoError(t, err)
	return transport, client
}

func loadModule(t *testing.T, client *rpc.Client, name string) *rpc.RemoteModule {
	t.Helper()

	ctx := context.Background()
	port, err := client.CreatePort(ctx, socialnet.ServicePortName)
	require.NoError(t, err)
	assert.Equal(t, socialnet.ServicePortName, port.Name())

	mod, err := port.LoadModule(ctx, name)
	require.NoError(t, err)
	return mod
}

func echoModule() *rpc.Module {
	return rpc.NewModule("Echo").
		Unary("Say", func(ctx context.Context, sess *rpc.Session, payload json.RawMessage) (any, error) {
			var in echo
			if err := json.Unmarshal(payload, &in); err != nil {
				return nil, err
			}
			return echo{Text: strings.ToUpper(in.Text)}, nil
		}).
		Unary("Fail", func(ctx context.Context, sess *rpc.Session, payload json.RawMessage) (any, error) {
			return nil, errors.New("boom")
		})
}

func TestUnaryCall(t *testing.T) {
	t.Parallel()

	ts := startServer(t, nil, echoModule())
	_, client := dial(t, ts, nil)
	mod := loadModule(t, client, "Echo")

	assert.Equal(t, "Echo", mod.Name())
	assert.ElementsMatch(t, []string{"Say", "Fail"}, mod.Procedures())

	raw, err := mod.Call(context.Background(), "Say", echo{Text: "hello"})
	require.NoError(t, err)

	var out echo
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "HELLO", out.Text)
}

func TestConcurrentCalls(t *testing.T) {
	t.Parallel()

	ts := startServer(t, nil, echoModule())
	_, client := dial(t, ts, nil)
	mod := loadModule(t, client, "Echo")

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		text := strings.Repeat("a", i+1)
		go func() {
			raw, err := mod.Call(context.Background(), "Say", echo{Text: text})
			if err != nil {
				errs <- err
				return
			}
			var out echo
			if err := json.Unmarshal(raw, &out); err != nil {
				errs <- err
				return
			}
			if out.Text != strings.ToUpper(text) {
				errs <- errors.New("reply routed to the wrong caller: " + out.Text)
				return
			}
			errs <- nil
		}()
	}

	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestRemoteErrors(t *testing.T) {
	t.Parallel()

	ts := startServer(t, nil, echoModule())
	_, client := dial(t, ts, nil)
	ctx := context.Background()

	port, err := client.CreatePort(ctx, socialnet.ServicePortName)
	require.NoError(t, err)

	_, err = port.LoadModule(ctx, "Missing")
	var remote *rpc.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, rpc.CodeUnknownModule, remote.Code)

	mod, err := port.LoadModule(ctx, "Echo")
	require.NoError(t, err)

	_, err = mod.Call(ctx, "Fail", nil)
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, rpc.CodeProcedureFailed, remote.Code)
	assert.Equal(t, "boom", remote.Message)

	_, err = mod.Call(ctx, "Nope", nil)
	assert.ErrorIs(t, err, rpc.ErrUnknownProcedure)
}

func TestStreamWaitsForAck(t *testing.T) {
	t.Parallel()

	var produced atomic.Int32
	mod := rpc.NewModule("Counter").
		Streaming("Count", func(ctx context.Context, sess *rpc.Session, payload json.RawMessage, send func(any) error) error {
			for i := 1; i <= 3; i++ {
				produced.Add(1)
				if err := send(i); err != nil {
					return err
				}
			}
			return nil
		})

	ts := startServer(t, nil, mod)
	_, client := dial(t, ts, nil)
	counter := loadModule(t, client, "Counter")

	ctx := context.Background()
	stream, err := counter.Stream(ctx, "Count", nil)
	require.NoError(t, err)

	raw, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, "1", string(raw))

	// Nothing is acked yet, so the server must not produce the next element
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, produced.Load())

	for _, want := range []string{"2", "3"} {
		raw, err := stream.Next(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, want, string(raw))
	}

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	// Errors are sticky
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamCloseStopsProducer(t *testing.T) {
	t.Parallel()

	stopped := make(chan error, 1)
	mod := rpc.NewModule("Ticker").
		Streaming("Tick", func(ctx context.Context, sess *rpc.Session, payload json.RawMessage, send func(any) error) error {
			for i := 0; ; i++ {
				if err := send(i); err != nil {
					stopped <- err
					return err
				}
			}
		})

	ts := startServer(t, nil, mod)
	_, client := dial(t, ts, nil)
	ticker := loadModule(t, client, "Ticker")

	ctx := context.Background()
	stream, err := ticker.Stream(ctx, "Tick", nil)
	require.NoError(t, err)

	_, err = stream.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	select {
	case err := <-stopped:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("producer kept running after Close")
	}
}

func TestStreamHandlerError(t *testing.T) {
	t.Parallel()

	mod := rpc.NewModule("Broken").
		Streaming("Run", func(ctx context.Context, sess *rpc.Session, payload json.RawMessage, send func(any) error) error {
			if err := send("first"); err != nil {
				return err
			}
			return errors.New("exploded")
		})

	ts := startServer(t, nil, mod)
	_, client := dial(t, ts, nil)
	broken := loadModule(t, client, "Broken")

	ctx := context.Background()
	stream, err := broken.Stream(ctx, "Run", nil)
	require.NoError(t, err)

	_, err = stream.Next(ctx)
	require.NoError(t, err)

	_, err = stream.Next(ctx)
	var remote *rpc.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "exploded", remote.Message)
}

func TestConnectionClosedMidStream(t *testing.T) {
	t.Parallel()

	mod := rpc.NewModule("Slow").
		Streaming("Wait", func(ctx context.Context, sess *rpc.Session, payload json.RawMessage, send func(any) error) error {
			<-ctx.Done()
			return ctx.Err()
		})

	ts := startServer(t, nil, mod)
	transport, client := dial(t, ts, nil)
	slow := loadModule(t, client, "Slow")

	ctx := context.Background()
	stream, err := slow.Stream(ctx, "Wait", nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		transport.Close()
	}()

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, socialnet.ErrConnectionClosed)

	_, err = client.CreatePort(ctx, "late")
	assert.ErrorIs(t, err, socialnet.ErrConnectionClosed)
}

func TestAuthenticatedSession(t *testing.T) {
	t.Parallel()

	mod := rpc.NewModule("Whoami").
		Unary("Get", func(ctx context.Context, sess *rpc.Session, payload json.RawMessage) (any, error) {
			return sess.Address(), nil
		})

	cfg := &rpc.ServerConfig{
		Authenticate: func(headers map[string]string) (string, error) {
			if headers["x-identity-auth-chain-0"] == "" {
				return "", errors.New("missing chain")
			}
			return "0xabc", nil
		},
	}
	ts := startServer(t, cfg, mod)

	_, client := dial(t, ts, func(tr socialnet.Transport) {
		data, _ := json.Marshal(map[string]string{"x-identity-auth-chain-0": "{}"})
		tr.Send(context.Background(), data)
	})
	whoami := loadModule(t, client, "Whoami")

	raw, err := whoami.Call(context.Background(), "Get", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"0xabc"`, string(raw))
}

func TestAuthenticationRejected(t *testing.T) {
	t.Parallel()

	cfg := &rpc.ServerConfig{
		Authenticate: func(headers map[string]string) (string, error) {
			return "", errors.New("denied")
		},
	}
	ts := startServer(t, cfg, echoModule())

	transport, _ := dial(t, ts, func(tr socialnet.Transport) {
		tr.Send(context.Background(), []byte(`{}`))
	})

	select {
	case <-transport.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("server kept a connection that failed authentication")
	}
}
