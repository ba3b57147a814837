package client

import (
	"context"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/contract"
	"github.com/luciancaetano/socialnet/contract/socialv2"
)

// Social is the client of the signed-header social service contract.
// Requests carry no credential; the session is authenticated in-band.
type Social struct {
	session *Session
}

var _ socialnet.SocialClient = (*Social)(nil)

// NewSocial returns a client that opens session on Connect.
func NewSocial(session *Session) *Social {
	return &Social{session: session}
}

func (c *Social) Session() *Session {
	return c.session
}

func (c *Social) Connect(ctx context.Context) error {
	return c.session.Open(ctx)
}

func (c *Social) Disconnect() error {
	return c.session.Close()
}

func (c *Social) OnDisconnect(callback func()) {
	c.session.OnDisconnect(callback)
}

func (c *Social) OnConnectionError(callback func(err error)) {
	c.session.OnConnectionError(callback)
}

func (c *Social) GetFriends(ctx context.Context, pagination *contract.Pagination) (socialv2.PaginatedFriendsProfilesResponse, error) {
	return call[socialv2.PaginatedFriendsProfilesResponse](ctx, c.session, socialv2.MethodGetFriends,
		socialv2.GetFriendsPayload{Pagination: pagination})
}

func (c *Social) GetMutualFriends(ctx context.Context, address string, pagination *contract.Pagination) (socialv2.PaginatedFriendsProfilesResponse, error) {
	return call[socialv2.PaginatedFriendsProfilesResponse](ctx, c.session, socialv2.MethodGetMutualFriends,
		socialv2.GetMutualFriendsPayload{User: contract.User{Address: address}, Pagination: pagination})
}

func (c *Social) GetPendingFriendshipRequests(ctx context.Context, pagination *contract.Pagination) (socialv2.PaginatedFriendshipRequestsResponse, error) {
	return call[socialv2.PaginatedFriendshipRequestsResponse](ctx, c.session, socialv2.MethodGetPendingFriendshipRequests,
		socialv2.GetFriendshipRequestsPayload{Pagination: pagination})
}

func (c *Social) GetSentFriendshipRequests(ctx context.Context, pagination *contract.Pagination) (socialv2.PaginatedFriendshipRequestsResponse, error) {
	return call[socialv2.PaginatedFriendshipRequestsResponse](ctx, c.session, socialv2.MethodGetSentFriendshipRequests,
		socialv2.GetFriendshipRequestsPayload{Pagination: pagination})
}

func (c *Social) GetFriendshipStatus(ctx context.Context, address string) (socialv2.FriendshipStatusOk, error) {
	resp, err := call[socialv2.GetFriendshipStatusResponse](ctx, c.session, socialv2.MethodGetFriendshipStatus,
		socialv2.GetFriendshipStatusPayload{User: contract.User{Address: address}})
	return project(resp, err, "friendship status", func(r socialv2.GetFriendshipStatusResponse) *socialv2.FriendshipStatusOk { return r.Accepted })
}

func (c *Social) RequestFriendship(ctx context.Context, address, message string) (socialv2.UpsertFriendshipAccepted, error) {
	return c.upsertFriendship(ctx, socialv2.UpsertFriendshipPayload{
		Request: &socialv2.RequestAction{User: contract.User{Address: address}, Message: message},
	})
}

func (c *Social) AcceptFriendshipRequest(ctx context.Context, address string) (socialv2.UpsertFriendshipAccepted, error) {
	return c.upsertFriendship(ctx, socialv2.UpsertFriendshipPayload{Accept: userAction(address)})
}

func (c *Social) RejectFriendshipRequest(ctx context.Context, address string) (socialv2.UpsertFriendshipAccepted, error) {
	return c.upsertFriendship(ctx, socialv2.UpsertFriendshipPayload{Reject: userAction(address)})
}

func (c *Social) CancelFriendshipRequest(ctx context.Context, address string) (socialv2.UpsertFriendshipAccepted, error) {
	return c.upsertFriendship(ctx, socialv2.UpsertFriendshipPayload{Cancel: userAction(address)})
}

func (c *Social) DeleteFriendshipRequest(ctx context.Context, address string) (socialv2.UpsertFriendshipAccepted, error) {
	return c.upsertFriendship(ctx, socialv2.UpsertFriendshipPayload{Delete: userAction(address)})
}

func (c *Social) upsertFriendship(ctx context.Context, payload socialv2.UpsertFriendshipPayload) (socialv2.UpsertFriendshipAccepted, error) {
	resp, err := call[socialv2.UpsertFriendshipResponse](ctx, c.session, socialv2.MethodUpsertFriendship, payload)
	return project(resp, err, "friendship request", func(r socialv2.UpsertFriendshipResponse) *socialv2.UpsertFriendshipAccepted { return r.Accepted })
}

func (c *Social) GetSocialSettings(ctx context.Context) (socialv2.GetSocialSettingsResponse, error) {
	return call[socialv2.GetSocialSettingsResponse](ctx, c.session, socialv2.MethodGetSocialSettings, contract.Empty{})
}

func (c *Social) UpsertSocialSettings(ctx context.Context, settings socialv2.UpsertSocialSettingsPayload) (socialv2.UpsertSocialSettingsResponse, error) {
	return call[socialv2.UpsertSocialSettingsResponse](ctx, c.session, socialv2.MethodUpsertSocialSettings, settings)
}

func (c *Social) GetPrivateMessagesSettings(ctx context.Context, addresses []string) (socialv2.GetPrivateMessagesSettingsResponse, error) {
	return call[socialv2.GetPrivateMessagesSettingsResponse](ctx, c.session, socialv2.MethodGetPrivateMessagesSettings,
		socialv2.GetPrivateMessagesSettingsPayload{User: contract.Users(addresses...)})
}

func (c *Social) GetBlockingStatus(ctx context.Context) (socialv2.GetBlockingStatusResponse, error) {
	return call[socialv2.GetBlockingStatusResponse](ctx, c.session, socialv2.MethodGetBlockingStatus, contract.Empty{})
}

func (c *Social) GetBlockedUsers(ctx context.Context, pagination *contract.Pagination) (socialv2.GetBlockedUsersResponse, error) {
	return call[socialv2.GetBlockedUsersResponse](ctx, c.session, socialv2.MethodGetBlockedUsers,
		socialv2.GetBlockedUsersPayload{Pagination: pagination})
}

func (c *Social) BlockUser(ctx context.Context, address string) (socialv2.BlockUserResponse, error) {
	return call[socialv2.BlockUserResponse](ctx, c.session, socialv2.MethodBlockUser,
		socialv2.BlockUserPayload{User: contract.User{Address: address}})
}

func (c *Social) UnblockUser(ctx context.Context, address string) (socialv2.UnblockUserResponse, error) {
	return call[socialv2.UnblockUserResponse](ctx, c.session, socialv2.MethodUnblockUser,
		socialv2.UnblockUserPayload{User: contract.User{Address: address}})
}

func (c *Social) SubscribeToFriendConnectivityUpdates(ctx context.Context) (socialnet.Stream[socialv2.FriendConnectivityUpdate], error) {
	return openStream[socialv2.FriendConnectivityUpdate](ctx, c.session, socialv2.MethodSubscribeToFriendConnectivityUpdates, contract.Empty{})
}

func (c *Social) SubscribeToFriendshipUpdates(ctx context.Context) (socialnet.Stream[socialv2.FriendshipUpdate], error) {
	return openStream[socialv2.FriendshipUpdate](ctx, c.session, socialv2.MethodSubscribeToFriendshipUpdates, contract.Empty{})
}

func (c *Social) SubscribeToBlockUpdates(ctx context.Context) (socialnet.Stream[socialv2.BlockUpdate], error) {
	return openStream[socialv2.BlockUpdate](ctx, c.session, socialv2.MethodSubscribeToBlockUpdates, contract.Empty{})
}

func userAction(address string) *socialv2.UserAction {
	return &socialv2.UserAction{User: contract.User{Address: address}}
}
