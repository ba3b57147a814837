package mockserver

import (
	"context"
	"encoding/json"

	"github.com/luciancaetano/socialnet/contract"
	"github.com/luciancaetano/socialnet/contract/friendships"
	"github.com/luciancaetano/socialnet/contract/socialv2"
	"github.com/luciancaetano/socialnet/internal/rpc"
)

const invalidToken = "invalid synapse token"

// FriendshipsModule is the legacy bearer-token contract.
func (s *Service) FriendshipsModule() *rpc.Module {
	return rpc.NewModule(friendships.ServiceName).
		Streaming(friendships.MethodGetFriends, s.getLegacyFriends).
		Streaming(friendships.MethodGetMutualFriends, s.getLegacyMutualFriends).
		Unary(friendships.MethodGetRequestEvents, s.getRequestEvents).
		Unary(friendships.MethodUpdateFriendshipEvent, s.updateFriendshipEvent).
		Streaming(friendships.MethodSubscribeFriendshipEventsUpdates, s.subscribeFriendshipEvents)
}

// sendPages streams addresses in pages of the configured size.
func (s *Service) sendPages(addresses []string, send func(any) error) error {
	for start := 0; start < len(addresses); start += s.cfg.PageSize {
		end := min(start+s.cfg.PageSize, len(addresses))
		if err := send(friendships.UsersResponse{Users: contract.Users(addresses[start:end]...)}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) getLegacyFriends(ctx context.Context, _ *rpc.Session, payload json.RawMessage, send func(any) error) error {
	req, err := decode[friendships.Payload](payload)
	if err != nil {
		return send(badRequest(err))
	}
	me, ok := s.tokenOwner(req.SynapseToken)
	if !ok {
		return send(unauthorized(invalidToken))
	}
	return s.sendPages(s.graph.friendsOf(me), send)
}

func (s *Service) getLegacyMutualFriends(ctx context.Context, _ *rpc.Session, payload json.RawMessage, send func(any) error) error {
	req, err := decode[friendships.MutualFriendsPayload](payload)
	if err != nil {
		return send(badRequest(err))
	}
	me, ok := s.tokenOwner(req.AuthToken.SynapseToken)
	if !ok {
		return send(unauthorized(invalidToken))
	}
	other := normalize(req.User.Address)
	if err := validate(me, other); err != nil {
		return send(badRequest(err))
	}
	return s.sendPages(s.graph.mutualFriends(me, other), send)
}

func (s *Service) legacyRequests(me string, incoming bool) *friendships.Requests {
	pending := s.graph.requestsOf(me, incoming)
	out := &friendships.Requests{Total: len(pending)}
	for _, r := range pending {
		other := r.to
		if incoming {
			other = r.from
		}
		out.Items = append(out.Items, friendships.RequestResponse{
			User:      contract.User{Address: other},
			CreatedAt: millis(r.createdAt),
			Message:   r.message,
		})
	}
	return out
}

func (s *Service) getRequestEvents(ctx context.Context, _ *rpc.Session, payload json.RawMessage) (any, error) {
	req, err := decode[friendships.Payload](payload)
	if err != nil {
		return badRequest(err), nil
	}
	me, ok := s.tokenOwner(req.SynapseToken)
	if !ok {
		return unauthorized(invalidToken), nil
	}

	return friendships.RequestEventsResponse{Events: &friendships.RequestEvents{
		Outgoing: s.legacyRequests(me, false),
		Incoming: s.legacyRequests(me, true),
	}}, nil
}

func (s *Service) updateFriendshipEvent(ctx context.Context, _ *rpc.Session, payload json.RawMessage) (any, error) {
	req, err := decode[friendships.UpdateFriendshipPayload](payload)
	if err != nil {
		return badRequest(err), nil
	}
	me, ok := s.tokenOwner(req.AuthToken.SynapseToken)
	if !ok {
		return unauthorized(invalidToken), nil
	}

	var (
		event  friendships.FriendshipEventResponse
		other  string
		notify friendships.FriendshipEventResponse
	)
	self := &friendships.UserResponse{User: contract.User{Address: me}}

	switch e := req.Event; {
	case e.Request != nil:
		other = normalize(e.Request.User.Address)
		r, err := s.graph.request(me, other, e.Request.Message)
		if err != nil {
			return envelope(err), nil
		}
		event.Request = &friendships.RequestResponse{User: contract.User{Address: other}, CreatedAt: millis(r.createdAt), Message: r.message}
		notify.Request = &friendships.RequestResponse{User: self.User, CreatedAt: millis(r.createdAt), Message: r.message}
	case e.Accept != nil:
		other = normalize(e.Accept.User.Address)
		if _, err := s.graph.accept(me, other); err != nil {
			return envelope(err), nil
		}
		event.Accept = &friendships.UserResponse{User: contract.User{Address: other}}
		notify.Accept = self
	case e.Reject != nil:
		other = normalize(e.Reject.User.Address)
		if _, err := s.graph.reject(me, other); err != nil {
			return envelope(err), nil
		}
		event.Reject = &friendships.UserResponse{User: contract.User{Address: other}}
		notify.Reject = self
	case e.Cancel != nil:
		other = normalize(e.Cancel.User.Address)
		if _, err := s.graph.cancel(me, other); err != nil {
			return envelope(err), nil
		}
		event.Cancel = &friendships.UserResponse{User: contract.User{Address: other}}
		notify.Cancel = self
	case e.Delete != nil:
		other = normalize(e.Delete.User.Address)
		if _, err := s.graph.unfriend(me, other); err != nil {
			return envelope(err), nil
		}
		event.Delete = &friendships.UserResponse{User: contract.User{Address: other}}
		notify.Delete = self
	default:
		return badRequest(errUnknownEventKey), nil
	}

	s.legacyEvents.publish(other, notify)
	return friendships.UpdateFriendshipResponse{Event: &event}, nil
}

func (s *Service) subscribeFriendshipEvents(ctx context.Context, _ *rpc.Session, payload json.RawMessage, send func(any) error) error {
	req, err := decode[friendships.Payload](payload)
	if err != nil {
		return send(badRequest(err))
	}
	me, ok := s.tokenOwner(req.SynapseToken)
	if !ok {
		return send(unauthorized(invalidToken))
	}

	events, cancel := s.legacyEvents.subscribe(me)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-events:
			batch := friendships.SubscribeFriendshipEventsUpdatesResponse{
				Events: &friendships.FriendshipEventResponses{Responses: []friendships.FriendshipEventResponse{event}},
			}
			if err := send(batch); err != nil {
				return err
			}
		}
	}
}

// legacyEvent converts a v2 friendship update sent by me into the legacy
// event shape, so both contracts observe the same graph changes.
func legacyEvent(me string, update socialv2.FriendshipUpdate) friendships.FriendshipEventResponse {
	self := &friendships.UserResponse{User: contract.User{Address: me}}
	var event friendships.FriendshipEventResponse

	switch {
	case update.Request != nil:
		event.Request = &friendships.RequestResponse{
			User:      self.User,
			CreatedAt: update.Request.CreatedAt,
			Message:   update.Request.Message,
		}
	case update.Accept != nil:
		event.Accept = self
	case update.Reject != nil:
		event.Reject = self
	case update.Cancel != nil:
		event.Cancel = self
	case update.Delete != nil:
		event.Delete = self
	}
	return event
}
