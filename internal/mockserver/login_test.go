package mockserver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/internal/auth"
)

func TestLoginThenLogout(t *testing.T) {
	t.Parallel()

	svc := New(nil)
	ts := httptest.NewServer(svc.LoginHandler())
	defer ts.Close()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	identity, err := auth.NewIdentity(key, time.Hour)
	require.NoError(t, err)

	ctx := context.Background()
	token, err := auth.Login(ctx, ts.Client(), ts.URL, identity, time.Now())
	require.NoError(t, err)

	owner, ok := svc.tokenOwner(token)
	require.True(t, ok)
	assert.Equal(t, normalize(identity.Address()), owner)

	require.NoError(t, auth.Logout(ctx, ts.Client(), ts.URL, token))
	_, ok = svc.tokenOwner(token)
	assert.False(t, ok, "token is revoked")

	err = auth.Logout(ctx, ts.Client(), ts.URL, token)
	assert.EqualError(t, err, "synapse logout: unrecognised access token")
}

func TestLoginRejectsForeignChain(t *testing.T) {
	t.Parallel()

	svc := New(nil)
	ts := httptest.NewServer(svc.LoginHandler())
	defer ts.Close()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	identity, err := auth.NewIdentity(key, time.Hour)
	require.NoError(t, err)

	_, err = auth.Login(context.Background(), ts.Client(), ts.URL, impostor{identity}, time.Now())
	var authErr *socialnet.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "auth chain does not belong to the user")
}

// impostor claims another address than the one its chain is signed by.
type impostor struct{ auth.Identity }

func (impostor) Address() string { return "0x0000000000000000000000000000000000000001" }
