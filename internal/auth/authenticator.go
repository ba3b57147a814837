package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet"
)

// Credential is what an Authenticator produced: a bearer token for the
// legacy contract or the signed header set sent in-band.
type Credential struct {
	Token   string
	Headers map[string]string
}

// Dispatch resolves once, when the credential is usable.
type Dispatch struct {
	done chan struct{}
	once sync.Once
	cred Credential
	err  error
}

func newDispatch() *Dispatch {
	return &Dispatch{done: make(chan struct{})}
}

// Resolved returns a Dispatch that already holds cred.
func Resolved(cred Credential) *Dispatch {
	d := newDispatch()
	d.resolve(cred, nil)
	return d
}

func (d *Dispatch) resolve(cred Credential, err error) {
	d.once.Do(func() {
		d.cred = cred
		d.err = err
		close(d.done)
	})
}

// Done is closed once the Dispatch is resolved.
func (d *Dispatch) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the Dispatch resolves or ctx is done.
func (d *Dispatch) Wait(ctx context.Context) (Credential, error) {
	select {
	case <-d.done:
		return d.cred, d.err
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	}
}

// Authenticator produces the credential a session is opened with. It is
// called before the transport connects; strategies that authenticate
// in-band hook into the transport and resolve the Dispatch later.
type Authenticator interface {
	Authenticate(ctx context.Context, t socialnet.Transport) (*Dispatch, error)
}

// Bearer logs in to the synapse server before any socket activity and
// attaches the token to every request.
type Bearer struct {
	Endpoint   string
	Identity   Identity
	HTTPClient *http.Client
	Now        func() time.Time
	Logger     *zap.Logger
}

var _ Authenticator = (*Bearer)(nil)

func (b *Bearer) Authenticate(ctx context.Context, _ socialnet.Transport) (*Dispatch, error) {
	token, err := Login(ctx, b.HTTPClient, b.Endpoint, b.Identity, now(b.Now))
	if err != nil {
		logger(b.Logger).Warn("synapse login failed", zap.String("endpoint", b.Endpoint), zap.Error(err))
		return nil, err
	}
	logger(b.Logger).Debug("synapse login succeeded", zap.String("address", b.Identity.Address()))
	return Resolved(Credential{Token: token}), nil
}

// Logout revokes a token obtained by Authenticate.
func (b *Bearer) Logout(ctx context.Context, token string) error {
	return Logout(ctx, b.HTTPClient, b.Endpoint, token)
}

// SignedHeaders sends a signed header set for GET / as the first frame of
// the connection. The Dispatch resolves as soon as the frame is queued; the
// server's verdict is only observable as a closed connection.
type SignedHeaders struct {
	Identity Identity
	Now      func() time.Time
	Logger   *zap.Logger
}

var _ Authenticator = (*SignedHeaders)(nil)

func (s *SignedHeaders) Authenticate(ctx context.Context, t socialnet.Transport) (*Dispatch, error) {
	headers, err := SignHeaders(s.Identity, http.MethodGet, "/", "{}", now(s.Now))
	if err != nil {
		return nil, fmt.Errorf("sign headers: %w", err)
	}
	frame, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("encode headers: %w", err)
	}

	d := newDispatch()
	t.OnConnect(func() {
		if err := t.Send(ctx, frame); err != nil {
			d.resolve(Credential{}, fmt.Errorf("send auth headers: %w", err))
			return
		}
		logger(s.Logger).Debug("auth headers sent", zap.String("transport_id", t.ID()))
		d.resolve(Credential{Headers: headers}, nil)
	})
	t.OnClose(func() {
		d.resolve(Credential{}, socialnet.ErrConnectionClosed)
	})
	return d, nil
}

func now(fn func() time.Time) time.Time {
	if fn == nil {
		return time.Now()
	}
	return fn()
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
