package client

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/contract/socialv2"
)

func openFixture(t *testing.T) *fixture {
	t.Helper()

	f := newFixture(t, staticAuth{}, socialv2.ServiceName)
	require.NoError(t, f.session.Open(testContext(t)))
	return f
}

func TestStreamStopsAtErrorVariant(t *testing.T) {
	t.Parallel()

	f := openFixture(t)
	raw := &fakeRawStream{elements: []string{
		`{"address":"0x1","isBlocked":true}`,
		`{"address":"0x2","isBlocked":false}`,
		`{"forbiddenError":{"message":"not allowed"}}`,
		`{"address":"0x3","isBlocked":true}`,
	}}
	f.service.streams[socialv2.MethodSubscribeToBlockUpdates] = raw

	ctx := testContext(t)
	stream, err := NewSocial(f.session).SubscribeToBlockUpdates(ctx)
	require.NoError(t, err)

	first, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x1", first.Address)
	assert.True(t, first.IsBlocked)

	second, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x2", second.Address)

	_, err = stream.Next(ctx)
	var forbidden *socialnet.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, "not allowed", forbidden.Message)

	// The error is terminal: no fourth pull reaches the runtime
	_, again := stream.Next(ctx)
	assert.Equal(t, err, again)

	pulls, closed := raw.stats()
	assert.Equal(t, 3, pulls)
	assert.True(t, closed)
}

func TestStreamEnd(t *testing.T) {
	t.Parallel()

	f := openFixture(t)
	f.service.streams[socialv2.MethodSubscribeToFriendConnectivityUpdates] = &fakeRawStream{elements: []string{
		`{"friend":{"address":"0xa","name":"alice"},"status":0}`,
		`{"friend":{"address":"0xa","name":"alice"},"status":1}`,
	}}

	ctx := testContext(t)
	stream, err := NewSocial(f.session).SubscribeToFriendConnectivityUpdates(ctx)
	require.NoError(t, err)

	var statuses []socialv2.ConnectivityStatus
	for update, err := range socialnet.All(ctx, stream) {
		require.NoError(t, err)
		statuses = append(statuses, update.Status)
	}
	assert.Equal(t, []socialv2.ConnectivityStatus{socialv2.ConnectivityOnline, socialv2.ConnectivityOffline}, statuses)

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamSessionClosed(t *testing.T) {
	t.Parallel()

	f := openFixture(t)
	f.service.streams[socialv2.MethodSubscribeToFriendshipUpdates] = &fakeRawStream{endErr: socialnet.ErrConnectionClosed}

	ctx := testContext(t)
	stream, err := NewSocial(f.session).SubscribeToFriendshipUpdates(ctx)
	require.NoError(t, err)

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, socialnet.ErrConnectionClosed)
}

func TestStreamCancelledPullIsNotTerminal(t *testing.T) {
	t.Parallel()

	f := openFixture(t)
	raw := &fakeRawStream{endErr: context.Canceled}
	f.service.streams[socialv2.MethodSubscribeToBlockUpdates] = raw

	ctx := testContext(t)
	stream, err := NewSocial(f.session).SubscribeToBlockUpdates(ctx)
	require.NoError(t, err)

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, closed := raw.stats()
	assert.False(t, closed)

	require.NoError(t, stream.Close())
	_, closed = raw.stats()
	assert.True(t, closed)

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestAllYieldsTerminalError(t *testing.T) {
	t.Parallel()

	f := openFixture(t)
	f.service.streams[socialv2.MethodSubscribeToBlockUpdates] = &fakeRawStream{elements: []string{
		`{"address":"0x1","isBlocked":true}`,
		`{"unauthorizedError":{}}`,
	}}

	ctx := testContext(t)
	stream, err := NewSocial(f.session).SubscribeToBlockUpdates(ctx)
	require.NoError(t, err)

	var got []string
	var last error
	for update, err := range socialnet.All(ctx, stream) {
		if err != nil {
			last = err
			break
		}
		got = append(got, update.Address)
	}

	assert.Equal(t, []string{"0x1"}, got)
	var unauthorized *socialnet.UnauthorizedError
	require.ErrorAs(t, last, &unauthorized)
	assert.Equal(t, socialnet.ErrUnknownErrorMessage, unauthorized.Message)
}
