package client

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/internal/auth"
	"github.com/luciancaetano/socialnet/internal/websocket"
)

// staticAuth resolves to a fixed credential, or fails.
type staticAuth struct {
	cred auth.Credential
	err  error
	rec  *recorder
}

func (a staticAuth) Authenticate(ctx context.Context, t socialnet.Transport) (*auth.Dispatch, error) {
	if a.rec != nil {
		a.rec.add("authenticate")
	}
	if a.err != nil {
		return nil, a.err
	}
	return auth.Resolved(a.cred), nil
}

type fixture struct {
	rec       *recorder
	transport *asyncTransport
	runtime   *fakeRuntime
	service   *fakeService
	session   *Session
}

func newFixture(t *testing.T, authenticator auth.Authenticator, serviceName string) *fixture {
	t.Helper()

	rec := &recorder{}
	f := &fixture{
		rec:       rec,
		transport: newAsyncTransport(rec),
		service:   newFakeService(),
	}
	f.runtime = &fakeRuntime{rec: rec, service: f.service}
	f.session = NewSession(Config{
		Transport:     f.transport,
		Authenticator: authenticator,
		Runtime:       f.runtime.factory(),
		ServiceName:   serviceName,
	})
	t.Cleanup(func() { f.transport.Close() })
	return f
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSessionBootstrapOrdering(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	identity, err := auth.NewIdentity(key, time.Hour)
	require.NoError(t, err)

	f := newFixture(t, &auth.SignedHeaders{Identity: identity}, "SocialService")
	assert.Equal(t, StateIdle, f.session.State())

	require.NoError(t, f.session.Open(testContext(t)))
	assert.Equal(t, StateReady, f.session.State())

	events := f.rec.list()
	before := func(a, b string) {
		t.Helper()
		ia, ib := slices.Index(events, a), slices.Index(events, b)
		require.NotEqual(t, -1, ia, "missing %q in %v", a, events)
		require.NotEqual(t, -1, ib, "missing %q in %v", b, events)
		assert.Less(t, ia, ib, "%q should happen before %q: %v", a, b, events)
	}

	before("connect called", "connect fired")
	before("connect fired", "frame sent")
	before("frame sent", "runtime ready")
	before("port social", "module SocialService")
	before("frame sent", "module SocialService")

	frames := f.transport.sent()
	require.Len(t, frames, 1, "the auth frame is the only frame")

	cred := f.session.Credential()
	assert.Len(t, cred.Headers, 5)
	assert.Equal(t, "SocialService", f.runtime.loadedName)
}

func TestSessionOpenTwice(t *testing.T) {
	t.Parallel()

	f := newFixture(t, staticAuth{}, "SocialService")
	require.NoError(t, f.session.Open(testContext(t)))

	err := f.session.Open(testContext(t))
	assert.ErrorIs(t, err, socialnet.ErrSessionUsed)
	assert.Equal(t, StateReady, f.session.State())
}

func TestSessionBootstrapFailures(t *testing.T) {
	t.Parallel()

	authErr := socialnet.NewAuthenticationError(errors.New("500 Internal Server Error"))
	portErr := errors.New("port refused")
	moduleErr := errors.New("no such module")

	tests := []struct {
		name    string
		auth    auth.Authenticator
		setup   func(*fakeRuntime)
		wantErr error
	}{
		{
			name:    "authentication",
			auth:    staticAuth{err: authErr},
			wantErr: authErr,
		},
		{
			name:    "create port",
			auth:    staticAuth{},
			setup:   func(r *fakeRuntime) { r.portErr = portErr },
			wantErr: portErr,
		},
		{
			name:    "load module",
			auth:    staticAuth{},
			setup:   func(r *fakeRuntime) { r.moduleErr = moduleErr },
			wantErr: moduleErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tt.auth, "SocialService")
			if tt.setup != nil {
				tt.setup(f.runtime)
			}

			err := f.session.Open(testContext(t))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, StateClosed, f.session.State())

			select {
			case <-f.transport.Done():
			default:
				t.Error("transport left open after a failed bootstrap")
			}

			assert.ErrorIs(t, f.session.Open(testContext(t)), socialnet.ErrSessionUsed)
		})
	}
}

func TestSessionAuthenticationBeforeSocket(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	f := newFixture(t, staticAuth{rec: rec, err: errors.New("login failed")}, "FriendshipsService")
	f.transport.rec = rec

	require.Error(t, f.session.Open(testContext(t)))
	assert.Equal(t, []string{"authenticate"}, rec.list(), "no socket activity before the token exists")
	assert.Equal(t, StateClosed, f.session.State())
}

func TestSessionStateWhenSocketOpens(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	identity, err := auth.NewIdentity(key, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		auth    auth.Authenticator
		service string
		want    State
	}{
		{
			name:    "bearer token fetched up front",
			auth:    staticAuth{cred: auth.Credential{Token: "syt_token"}},
			service: "FriendshipsService",
			want:    StateAuthenticating,
		},
		{
			name:    "signed headers sent in-band",
			auth:    &auth.SignedHeaders{Identity: identity},
			service: "SocialService",
			want:    StateConnecting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tt.auth, tt.service)
			var atConnect State
			f.transport.dialing = func() { atConnect = f.session.State() }

			require.NoError(t, f.session.Open(testContext(t)))
			assert.Equal(t, tt.want, atConnect)
			assert.Equal(t, StateReady, f.session.State())
		})
	}
}

func TestSessionCloseAndErrorNotifications(t *testing.T) {
	t.Parallel()

	f := newFixture(t, staticAuth{}, "SocialService")
	require.NoError(t, f.session.Open(testContext(t)))

	disconnected := make(chan struct{}, 2)
	f.session.OnDisconnect(func() { disconnected <- struct{}{} })
	f.session.OnDisconnect(func() { disconnected <- struct{}{} })

	var gotErr error
	f.session.OnConnectionError(func(err error) { gotErr = err })

	terr := socialnet.NewTransportError(errors.New("reset by peer"))
	f.transport.fail(terr)
	assert.Equal(t, terr, gotErr)

	require.NoError(t, f.session.Close())
	assert.Len(t, disconnected, 2)
	assert.Equal(t, StateClosed, f.session.State())

	_, err := NewSocial(f.session).GetBlockingStatus(testContext(t))
	assert.ErrorIs(t, err, socialnet.ErrConnectionClosed)
}

func TestSessionNotReady(t *testing.T) {
	t.Parallel()

	f := newFixture(t, staticAuth{}, "SocialService")

	_, err := NewSocial(f.session).GetSocialSettings(testContext(t))
	assert.ErrorIs(t, err, socialnet.ErrSessionNotReady)
}

func TestSessionRateLimit(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	service := newFakeService()
	service.unary["GetBlockingStatus"] = `{}`
	runtime := &fakeRuntime{rec: rec, service: service}
	transport := newAsyncTransport(rec)
	t.Cleanup(func() { transport.Close() })

	session := NewSession(Config{
		Transport:       transport,
		Authenticator:   staticAuth{},
		Runtime:         runtime.factory(),
		ServiceName:     "SocialService",
		RateLimitConfig: &websocket.RateLimitConfig{MessagesPerSecond: 1, Burst: 1, Enabled: true},
	})
	require.NoError(t, session.Open(testContext(t)))

	client := NewSocial(session)
	_, err := client.GetBlockingStatus(testContext(t))
	require.NoError(t, err)

	// The bucket is empty; a short deadline cannot wait for the next token
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = client.GetBlockingStatus(ctx)
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateConnecting, "connecting"},
		{StateAuthenticating, "authenticating"},
		{StateReady, "ready"},
		{StateClosed, "closed"},
		{State(42), "State(42)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
