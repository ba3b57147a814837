package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/contract"
	"github.com/luciancaetano/socialnet/contract/socialv2"
)

func TestSocialUnaryCalls(t *testing.T) {
	t.Parallel()

	f := openFixture(t)
	client := NewSocial(f.session)
	ctx := testContext(t)

	f.service.unary[socialv2.MethodGetFriends] = `{"friends":[{"address":"0xa","name":"alice"}],"paginationData":{"total":1,"page":1}}`
	friends, err := client.GetFriends(ctx, &contract.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, friends.Friends, 1)
	assert.Equal(t, "alice", friends.Friends[0].Name)
	assert.JSONEq(t, `{"pagination":{"limit":10,"offset":0}}`, string(f.service.lastRequest(socialv2.MethodGetFriends)))

	f.service.unary[socialv2.MethodGetMutualFriends] = `{"friends":[]}`
	_, err = client.GetMutualFriends(ctx, "0xb", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":{"address":"0xb"}}`, string(f.service.lastRequest(socialv2.MethodGetMutualFriends)))

	f.service.unary[socialv2.MethodGetPendingFriendshipRequests] = `{"requests":{"requests":[{"friend":{"address":"0xc"},"createdAt":1,"id":"r1"}]}}`
	pending, err := client.GetPendingFriendshipRequests(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "r1", pending.Requests.Requests[0].ID)

	f.service.unary[socialv2.MethodGetSentFriendshipRequests] = `{"requests":{}}`
	_, err = client.GetSentFriendshipRequests(ctx, nil)
	require.NoError(t, err)

	f.service.unary[socialv2.MethodGetSocialSettings] = `{"ok":{"settings":{"privateMessagesPrivacy":1,"blockedUsersMessagesVisibility":0}}}`
	settings, err := client.GetSocialSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, socialv2.PrivateMessagesOnlyFriends, settings.Ok.Settings.PrivateMessagesPrivacy)

	privacy := socialv2.PrivateMessagesAll
	f.service.unary[socialv2.MethodUpsertSocialSettings] = `{"ok":{"privateMessagesPrivacy":0,"blockedUsersMessagesVisibility":0}}`
	_, err = client.UpsertSocialSettings(ctx, socialv2.UpsertSocialSettingsPayload{PrivateMessagesPrivacy: &privacy})
	require.NoError(t, err)
	assert.JSONEq(t, `{"privateMessagesPrivacy":0}`, string(f.service.lastRequest(socialv2.MethodUpsertSocialSettings)))

	f.service.unary[socialv2.MethodGetPrivateMessagesSettings] = `{"ok":{"settings":[{"user":{"address":"0xd"},"privateMessagesPrivacy":1,"isFriend":true}]}}`
	pm, err := client.GetPrivateMessagesSettings(ctx, []string{"0xd"})
	require.NoError(t, err)
	assert.True(t, pm.Ok.Settings[0].IsFriend)
	assert.JSONEq(t, `{"user":[{"address":"0xd"}]}`, string(f.service.lastRequest(socialv2.MethodGetPrivateMessagesSettings)))

	f.service.unary[socialv2.MethodGetBlockingStatus] = `{"blockedUsers":["0xe"],"blockedByUsers":["0xf"]}`
	blocking, err := client.GetBlockingStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xe"}, blocking.BlockedUsers)
	assert.Equal(t, []string{"0xf"}, blocking.BlockedByUsers)

	f.service.unary[socialv2.MethodGetBlockedUsers] = `{"profiles":[{"address":"0xe","blockedAt":5}]}`
	blocked, err := client.GetBlockedUsers(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 5, blocked.Profiles[0].BlockedAt)

	f.service.unary[socialv2.MethodBlockUser] = `{"ok":{"profile":{"address":"0xe"}}}`
	block, err := client.BlockUser(ctx, "0xe")
	require.NoError(t, err)
	assert.Equal(t, "0xe", block.Ok.Profile.Address)

	f.service.unary[socialv2.MethodUnblockUser] = `{"ok":{"profile":{"address":"0xe"}}}`
	_, err = client.UnblockUser(ctx, "0xe")
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":{"address":"0xe"}}`, string(f.service.lastRequest(socialv2.MethodUnblockUser)))
}

func TestSocialUpsertFriendship(t *testing.T) {
	t.Parallel()

	f := openFixture(t)
	client := NewSocial(f.session)
	ctx := testContext(t)

	f.service.unary[socialv2.MethodUpsertFriendship] = `{"accepted":{"id":"f1","createdAt":42}}`

	tests := []struct {
		name    string
		call    func() (socialv2.UpsertFriendshipAccepted, error)
		wantReq string
	}{
		{
			name:    "request",
			call:    func() (socialv2.UpsertFriendshipAccepted, error) { return client.RequestFriendship(ctx, "0x1", "hi") },
			wantReq: `{"request":{"user":{"address":"0x1"},"message":"hi"}}`,
		},
		{
			name:    "accept",
			call:    func() (socialv2.UpsertFriendshipAccepted, error) { return client.AcceptFriendshipRequest(ctx, "0x1") },
			wantReq: `{"accept":{"user":{"address":"0x1"}}}`,
		},
		{
			name:    "reject",
			call:    func() (socialv2.UpsertFriendshipAccepted, error) { return client.RejectFriendshipRequest(ctx, "0x1") },
			wantReq: `{"reject":{"user":{"address":"0x1"}}}`,
		},
		{
			name:    "cancel",
			call:    func() (socialv2.UpsertFriendshipAccepted, error) { return client.CancelFriendshipRequest(ctx, "0x1") },
			wantReq: `{"cancel":{"user":{"address":"0x1"}}}`,
		},
		{
			name:    "delete",
			call:    func() (socialv2.UpsertFriendshipAccepted, error) { return client.DeleteFriendshipRequest(ctx, "0x1") },
			wantReq: `{"delete":{"user":{"address":"0x1"}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, err := tt.call()
			require.NoError(t, err)
			assert.Equal(t, "f1", accepted.ID)
			assert.EqualValues(t, 42, accepted.CreatedAt)
			assert.JSONEq(t, tt.wantReq, string(f.service.lastRequest(socialv2.MethodUpsertFriendship)))
		})
	}
}

func TestSocialErrorTranslation(t *testing.T) {
	t.Parallel()

	f := openFixture(t)
	client := NewSocial(f.session)
	ctx := testContext(t)

	f.service.unary[socialv2.MethodGetFriendshipStatus] = `{"accepted":{"status":3}}`
	status, err := client.GetFriendshipStatus(ctx, "0x1")
	require.NoError(t, err)
	assert.Equal(t, socialv2.FriendshipStatusAccepted, status.Status)

	f.service.unary[socialv2.MethodGetFriendshipStatus] = `{}`
	_, err = client.GetFriendshipStatus(ctx, "0x1")
	assert.ErrorIs(t, err, socialnet.ErrIncompleteResponse)
	assert.EqualError(t, err, "friendship status: incomplete response")

	f.service.unary[socialv2.MethodUpsertFriendship] = `{}`
	_, err = client.AcceptFriendshipRequest(ctx, "0x1")
	assert.ErrorIs(t, err, socialnet.ErrIncompleteResponse)
	assert.EqualError(t, err, "friendship request: incomplete response")

	f.service.unary[socialv2.MethodGetFriendshipStatus] = `{"internalServerError":{"message":"db down"}}`
	_, err = client.GetFriendshipStatus(ctx, "0x1")
	var internal *socialnet.InternalServerError
	require.ErrorAs(t, err, &internal)
	assert.Equal(t, "db down", internal.Message)

	// Listings are translated too
	f.service.unary[socialv2.MethodGetBlockedUsers] = `{"tooManyRequestsError":{"message":"slow down"}}`
	_, err = client.GetBlockedUsers(ctx, nil)
	var tooMany *socialnet.TooManyRequestsError
	require.ErrorAs(t, err, &tooMany)
	assert.ErrorIs(t, err, socialnet.ErrRemote)

	f.service.unary[socialv2.MethodBlockUser] = `not json`
	_, err = client.BlockUser(ctx, "0x1")
	assert.ErrorContains(t, err, "decode BlockUser response")
}
