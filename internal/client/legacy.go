package client

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/contract"
	"github.com/luciancaetano/socialnet/contract/friendships"
)

// Legacy is the client of the bearer-token friendships contract. Every
// request carries the synapse token the session was opened with.
type Legacy struct {
	session *Session
}

var _ socialnet.LegacyClient = (*Legacy)(nil)

// OpenLegacy opens session and returns a ready client.
func OpenLegacy(ctx context.Context, session *Session) (*Legacy, error) {
	if err := session.Open(ctx); err != nil {
		return nil, err
	}
	return &Legacy{session: session}, nil
}

func (c *Legacy) Session() *Session {
	return c.session
}

const logoutTimeout = 10 * time.Second

// tokenRevoker is implemented by authenticators whose credential can be
// revoked, such as auth.Bearer.
type tokenRevoker interface {
	Logout(ctx context.Context, token string) error
}

// Disconnect revokes the synapse token and closes the session. The session
// is closed even when the logout fails.
func (c *Legacy) Disconnect() error {
	var logoutErr error
	if revoker, ok := c.session.cfg.Authenticator.(tokenRevoker); ok {
		if token := c.session.Credential().Token; token != "" {
			ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
			logoutErr = revoker.Logout(ctx, token)
			cancel()
			if logoutErr != nil {
				c.session.logger.Warn("synapse logout failed", zap.Error(logoutErr))
			}
		}
	}
	return errors.Join(logoutErr, c.session.Close())
}

func (c *Legacy) OnDisconnect(callback func()) {
	c.session.OnDisconnect(callback)
}

func (c *Legacy) OnConnectionError(callback func(err error)) {
	c.session.OnConnectionError(callback)
}

func (c *Legacy) token() friendships.AuthToken {
	return friendships.AuthToken{SynapseToken: c.session.Credential().Token}
}

func (c *Legacy) GetFriends(ctx context.Context) (socialnet.Stream[[]contract.User], error) {
	s, err := openStream[friendships.UsersResponse](ctx, c.session, friendships.MethodGetFriends,
		friendships.Payload{SynapseToken: c.token().SynapseToken})
	return mapStream(s, err, users)
}

func (c *Legacy) GetMutualFriends(ctx context.Context, address string) (socialnet.Stream[[]contract.User], error) {
	s, err := openStream[friendships.UsersResponse](ctx, c.session, friendships.MethodGetMutualFriends,
		friendships.MutualFriendsPayload{User: contract.User{Address: address}, AuthToken: c.token()})
	return mapStream(s, err, users)
}

func (c *Legacy) GetRequestEvents(ctx context.Context) (friendships.RequestEvents, error) {
	resp, err := call[friendships.RequestEventsResponse](ctx, c.session, friendships.MethodGetRequestEvents,
		friendships.Payload{SynapseToken: c.token().SynapseToken})
	return project(resp, err, "request events", func(r friendships.RequestEventsResponse) *friendships.RequestEvents { return r.Events })
}

func (c *Legacy) RequestFriendship(ctx context.Context, address, message string) (friendships.FriendshipEventResponse, error) {
	return c.updateFriendship(ctx, friendships.FriendshipEventPayload{
		Request: &friendships.RequestPayload{User: contract.User{Address: address}, Message: message},
	})
}

func (c *Legacy) CancelFriendshipRequest(ctx context.Context, address string) (friendships.FriendshipEventResponse, error) {
	return c.updateFriendship(ctx, friendships.FriendshipEventPayload{Cancel: userPayload(address)})
}

func (c *Legacy) AcceptFriendshipRequest(ctx context.Context, address string) (friendships.FriendshipEventResponse, error) {
	return c.updateFriendship(ctx, friendships.FriendshipEventPayload{Accept: userPayload(address)})
}

func (c *Legacy) RejectFriendshipRequest(ctx context.Context, address string) (friendships.FriendshipEventResponse, error) {
	return c.updateFriendship(ctx, friendships.FriendshipEventPayload{Reject: userPayload(address)})
}

func (c *Legacy) updateFriendship(ctx context.Context, event friendships.FriendshipEventPayload) (friendships.FriendshipEventResponse, error) {
	resp, err := call[friendships.UpdateFriendshipResponse](ctx, c.session, friendships.MethodUpdateFriendshipEvent,
		friendships.UpdateFriendshipPayload{Event: event, AuthToken: c.token()})
	return project(resp, err, "friendship event", func(r friendships.UpdateFriendshipResponse) *friendships.FriendshipEventResponse { return r.Event })
}

func (c *Legacy) SubscribeToFriendshipRequests(ctx context.Context) (socialnet.Stream[[]friendships.FriendshipEventResponse], error) {
	s, err := openStream[friendships.SubscribeFriendshipEventsUpdatesResponse](ctx, c.session,
		friendships.MethodSubscribeFriendshipEventsUpdates, friendships.Payload{SynapseToken: c.token().SynapseToken})
	return mapStream(s, err, func(r friendships.SubscribeFriendshipEventsUpdatesResponse) []friendships.FriendshipEventResponse {
		if r.Events == nil {
			return nil
		}
		return r.Events.Responses
	})
}

func users(r friendships.UsersResponse) []contract.User {
	return r.Users
}

func userPayload(address string) *friendships.UserPayload {
	return &friendships.UserPayload{User: contract.User{Address: address}}
}
