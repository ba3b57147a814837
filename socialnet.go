package socialnet

import (
	"context"
	"iter"

	"github.com/luciancaetano/socialnet/contract"
	"github.com/luciancaetano/socialnet/contract/friendships"
	"github.com/luciancaetano/socialnet/contract/socialv2"
)

// Transport is a single duplex WebSocket connection carrying binary frames.
//
// Events are scoped to the instance. A Transport is used for exactly one
// connection: it never reconnects, and a closed Transport stays closed.
//
// Example usage:
//
//	t := websocket.NewTransport("wss://rpc-social.example.org", nil)
//	t.OnMessage(func(frame []byte) { ... })
//	t.OnClose(func() { log.Println("closed") })
//	if err := t.Connect(ctx); err != nil {
//	    return err
//	}
//	defer t.Close()
type Transport interface {
	// ID returns a unique identifier for this transport instance.
	ID() string

	// Connect dials the remote endpoint and blocks until the socket is open,
	// the dial fails, or ctx is done.
	//
	// Returns ErrAlreadyConnected when called after a successful Connect.
	Connect(ctx context.Context) error

	// Send transmits one binary frame.
	//
	// Returns ErrNotConnected when the socket is not open.
	Send(ctx context.Context, data []byte) error

	// Close closes the connection. It is a no-op if no socket exists.
	Close() error

	// IsConnected returns true while the socket is open.
	IsConnected() bool

	// Ready is closed once the socket is open and every connect handler ran.
	Ready() <-chan struct{}

	// Done is closed once the transport is closed.
	Done() <-chan struct{}

	// OnConnect registers a handler fired once when the socket opens. If the
	// socket is already open the handler is fired synchronously, so a late
	// subscriber never misses the event.
	OnConnect(handler func())

	// OnMessage registers a handler fired for every binary frame. Text frames
	// are ignored.
	OnMessage(handler func(data []byte))

	// OnError registers a handler fired with a *TransportError for every
	// socket failure.
	OnError(handler func(err error))

	// OnClose registers a handler fired at most once, when the transport closes.
	OnClose(handler func())
}

// Stream is a lazy, single-pass sequence returned by server-streaming calls.
//
// Next returns io.EOF once the server ends the stream, a typed error when an
// element carries an error variant, and ErrConnectionClosed when the session
// closes mid-stream. After Next returns an error the stream is finished.
type Stream[T any] interface {
	Next(ctx context.Context) (T, error)
	Close() error
}

// All adapts a Stream to a range-over-func iterator. Iteration stops after
// the first error, which is yielded unless it is io.EOF.
func All[T any](ctx context.Context, s Stream[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer s.Close()
		for {
			v, err := s.Next(ctx)
			if err != nil {
				if !isEOF(err) {
					yield(v, err)
				}
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// SocialClient is a client of the signed-header social service contract.
//
// Authentication happens in-band: Connect sends a signed header frame as the
// very first message on the WebSocket, so requests carry no credential.
//
// Example usage:
//
//	client := social.New(social.NewConfig(rpcURL, identity))
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Disconnect()
//
//	friends, err := client.GetFriends(ctx, nil)
//	var badRequest *socialnet.BadRequestError
//	if errors.As(err, &badRequest) {
//	    log.Printf("rejected: %s", badRequest.Message)
//	}
type SocialClient interface {
	// Connect opens the transport, authenticates and loads the service.
	// It may be called once; a failed Connect leaves the client unusable.
	Connect(ctx context.Context) error

	// Disconnect closes the transport. In-flight calls fail and active
	// streams end with ErrConnectionClosed.
	Disconnect() error

	// OnDisconnect registers a callback fired when the connection closes.
	OnDisconnect(callback func())

	// OnConnectionError registers a callback fired on transport errors.
	OnConnectionError(callback func(err error))

	GetFriends(ctx context.Context, pagination *contract.Pagination) (socialv2.PaginatedFriendsProfilesResponse, error)
	GetMutualFriends(ctx context.Context, address string, pagination *contract.Pagination) (socialv2.PaginatedFriendsProfilesResponse, error)
	GetPendingFriendshipRequests(ctx context.Context, pagination *contract.Pagination) (socialv2.PaginatedFriendshipRequestsResponse, error)
	GetSentFriendshipRequests(ctx context.Context, pagination *contract.Pagination) (socialv2.PaginatedFriendshipRequestsResponse, error)

	// GetFriendshipStatus returns ErrIncompleteResponse when the server
	// answers without an error variant and without a status.
	GetFriendshipStatus(ctx context.Context, address string) (socialv2.FriendshipStatusOk, error)

	RequestFriendship(ctx context.Context, address, message string) (socialv2.UpsertFriendshipAccepted, error)
	AcceptFriendshipRequest(ctx context.Context, address string) (socialv2.UpsertFriendshipAccepted, error)
	RejectFriendshipRequest(ctx context.Context, address string) (socialv2.UpsertFriendshipAccepted, error)
	CancelFriendshipRequest(ctx context.Context, address string) (socialv2.UpsertFriendshipAccepted, error)
	DeleteFriendshipRequest(ctx context.Context, address string) (socialv2.UpsertFriendshipAccepted, error)

	GetSocialSettings(ctx context.Context) (socialv2.GetSocialSettingsResponse, error)
	UpsertSocialSettings(ctx context.Context, settings socialv2.UpsertSocialSettingsPayload) (socialv2.UpsertSocialSettingsResponse, error)
	GetPrivateMessagesSettings(ctx context.Context, addresses []string) (socialv2.GetPrivateMessagesSettingsResponse, error)

	GetBlockingStatus(ctx context.Context) (socialv2.GetBlockingStatusResponse, error)
	GetBlockedUsers(ctx context.Context, pagination *contract.Pagination) (socialv2.GetBlockedUsersResponse, error)
	BlockUser(ctx context.Context, address string) (socialv2.BlockUserResponse, error)
	UnblockUser(ctx context.Context, address string) (socialv2.UnblockUserResponse, error)

	SubscribeToFriendConnectivityUpdates(ctx context.Context) (Stream[socialv2.FriendConnectivityUpdate], error)
	SubscribeToFriendshipUpdates(ctx context.Context) (Stream[socialv2.FriendshipUpdate], error)
	SubscribeToBlockUpdates(ctx context.Context) (Stream[socialv2.BlockUpdate], error)
}

// LegacyClient is a client of the bearer-token friendships contract.
//
// The synapse token is obtained once before the session exists and attached
// to every request.
type LegacyClient interface {
	// Disconnect revokes the synapse token, then closes the transport. The
	// transport is closed even when the logout fails.
	Disconnect() error

	OnDisconnect(callback func())
	OnConnectionError(callback func(err error))

	// GetFriends streams pages of friends.
	GetFriends(ctx context.Context) (Stream[[]contract.User], error)

	// GetMutualFriends streams pages of friends shared with address.
	GetMutualFriends(ctx context.Context, address string) (Stream[[]contract.User], error)

	GetRequestEvents(ctx context.Context) (friendships.RequestEvents, error)

	RequestFriendship(ctx context.Context, address, message string) (friendships.FriendshipEventResponse, error)
	CancelFriendshipRequest(ctx context.Context, address string) (friendships.FriendshipEventResponse, error)
	AcceptFriendshipRequest(ctx context.Context, address string) (friendships.FriendshipEventResponse, error)
	RejectFriendshipRequest(ctx context.Context, address string) (friendships.FriendshipEventResponse, error)

	// SubscribeToFriendshipRequests streams friendship events as they happen.
	SubscribeToFriendshipRequests(ctx context.Context) (Stream[[]friendships.FriendshipEventResponse], error)
}
