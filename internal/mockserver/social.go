package mockserver

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet/contract"
	"github.com/luciancaetano/socialnet/contract/socialv2"
	"github.com/luciancaetano/socialnet/internal/rpc"
)

// signed wraps a SocialService procedure: the caller is the address the
// session authenticated as.
func signed[Req any](fn func(me string, req Req) any) rpc.UnaryHandler {
	return func(ctx context.Context, sess *rpc.Session, payload json.RawMessage) (any, error) {
		me := normalize(sess.Address())
		if me == "" {
			return unauthorized("session is not authenticated"), nil
		}
		req, err := decode[Req](payload)
		if err != nil {
			return badRequest(err), nil
		}
		return fn(me, req), nil
	}
}

// signedStream wraps a SocialService streaming procedure.
func signedStream(fn func(ctx context.Context, me string, send func(any) error) error) rpc.StreamHandler {
	return func(ctx context.Context, sess *rpc.Session, payload json.RawMessage, send func(any) error) error {
		me := normalize(sess.Address())
		if me == "" {
			return send(unauthorized("session is not authenticated"))
		}
		return fn(ctx, me, send)
	}
}

// SocialModule is the signed-header contract.
func (s *Service) SocialModule() *rpc.Module {
	return rpc.NewModule(socialv2.ServiceName).
		Unary(socialv2.MethodGetFriends, signed(s.getFriends)).
		Unary(socialv2.MethodGetMutualFriends, signed(s.getMutualFriends)).
		Unary(socialv2.MethodGetPendingFriendshipRequests, signed(s.requestsHandler(true))).
		Unary(socialv2.MethodGetSentFriendshipRequests, signed(s.requestsHandler(false))).
		Unary(socialv2.MethodGetFriendshipStatus, signed(s.getFriendshipStatus)).
		Unary(socialv2.MethodUpsertFriendship, signed(s.upsertFriendship)).
		Unary(socialv2.MethodGetSocialSettings, signed(s.getSocialSettings)).
		Unary(socialv2.MethodUpsertSocialSettings, signed(s.upsertSocialSettings)).
		Unary(socialv2.MethodGetPrivateMessagesSettings, signed(s.getPrivateMessagesSettings)).
		Unary(socialv2.MethodGetBlockingStatus, signed(s.getBlockingStatus)).
		Unary(socialv2.MethodGetBlockedUsers, signed(s.getBlockedUsers)).
		Unary(socialv2.MethodBlockUser, signed(s.blockUser)).
		Unary(socialv2.MethodUnblockUser, signed(s.unblockUser)).
		Streaming(socialv2.MethodSubscribeToFriendConnectivityUpdates, signedStream(s.subscribeConnectivity)).
		Streaming(socialv2.MethodSubscribeToFriendshipUpdates, signedStream(func(ctx context.Context, me string, send func(any) error) error {
			return subscribe(ctx, s.friendshipUpdates, me, send)
		})).
		Streaming(socialv2.MethodSubscribeToBlockUpdates, signedStream(func(ctx context.Context, me string, send func(any) error) error {
			return subscribe(ctx, s.blockUpdates, me, send)
		}))
}

func (s *Service) profiles(addresses []string) []contract.FriendProfile {
	out := make([]contract.FriendProfile, 0, len(addresses))
	for _, address := range addresses {
		out = append(out, s.profile(address))
	}
	return out
}

func (s *Service) getFriends(me string, req socialv2.GetFriendsPayload) any {
	page, data := paginate(s.profiles(s.graph.friendsOf(me)), req.Pagination)
	return socialv2.PaginatedFriendsProfilesResponse{Friends: page, PaginationData: data}
}

func (s *Service) getMutualFriends(me string, req socialv2.GetMutualFriendsPayload) any {
	if err := validate(me, normalize(req.User.Address)); err != nil {
		return badRequest(err)
	}
	page, data := paginate(s.profiles(s.graph.mutualFriends(me, req.User.Address)), req.Pagination)
	return socialv2.PaginatedFriendsProfilesResponse{Friends: page, PaginationData: data}
}

func (s *Service) requestsHandler(incoming bool) func(me string, req socialv2.GetFriendshipRequestsPayload) any {
	return func(me string, req socialv2.GetFriendshipRequestsPayload) any {
		var items []socialv2.FriendshipRequestResponse
		for _, r := range s.graph.requestsOf(me, incoming) {
			other := r.to
			if incoming {
				other = r.from
			}
			items = append(items, socialv2.FriendshipRequestResponse{
				Friend:    s.profile(other),
				Message:   r.message,
				CreatedAt: millis(r.createdAt),
				ID:        r.id,
			})
		}
		page, data := paginate(items, req.Pagination)
		return socialv2.PaginatedFriendshipRequestsResponse{
			Requests:       &socialv2.FriendshipRequests{Requests: page},
			PaginationData: data,
		}
	}
}

func (s *Service) getFriendshipStatus(me string, req socialv2.GetFriendshipStatusPayload) any {
	other := normalize(req.User.Address)
	if err := validate(me, other); err != nil {
		return badRequest(err)
	}

	ok := &socialv2.FriendshipStatusOk{Status: s.graph.status(me, other)}
	for _, r := range s.graph.requestsOf(me, ok.Status == socialv2.FriendshipStatusRequestReceived) {
		if r.from == other || r.to == other {
			ok.Message = r.message
		}
	}
	return socialv2.GetFriendshipStatusResponse{Accepted: ok}
}

func (s *Service) upsertFriendship(me string, req socialv2.UpsertFriendshipPayload) any {
	var (
		other    string
		accepted socialv2.UpsertFriendshipAccepted
		update   socialv2.FriendshipUpdate
		err      error
	)

	switch {
	case req.Request != nil:
		other = normalize(req.Request.User.Address)
		var r request
		if r, err = s.graph.request(me, other, req.Request.Message); err == nil {
			accepted = socialv2.UpsertFriendshipAccepted{ID: r.id, CreatedAt: millis(r.createdAt), Message: r.message}
			update.Request = &socialv2.FriendshipRequestResponse{
				Friend: s.profile(me), Message: r.message, CreatedAt: millis(r.createdAt), ID: r.id,
			}
		}
	case req.Accept != nil:
		other = normalize(req.Accept.User.Address)
		var f friendship
		if f, err = s.graph.accept(me, other); err == nil {
			accepted = socialv2.UpsertFriendshipAccepted{ID: f.id, CreatedAt: millis(f.createdAt)}
			update.Accept = &socialv2.UserUpdate{User: contract.User{Address: me}}
		}
	case req.Reject != nil:
		other = normalize(req.Reject.User.Address)
		var r request
		if r, err = s.graph.reject(me, other); err == nil {
			accepted = socialv2.UpsertFriendshipAccepted{ID: r.id, CreatedAt: millis(s.cfg.Now())}
			update.Reject = &socialv2.UserUpdate{User: contract.User{Address: me}}
		}
	case req.Cancel != nil:
		other = normalize(req.Cancel.User.Address)
		var r request
		if r, err = s.graph.cancel(me, other); err == nil {
			accepted = socialv2.UpsertFriendshipAccepted{ID: r.id, CreatedAt: millis(s.cfg.Now())}
			update.Cancel = &socialv2.UserUpdate{User: contract.User{Address: me}}
		}
	case req.Delete != nil:
		other = normalize(req.Delete.User.Address)
		var f friendship
		if f, err = s.graph.unfriend(me, other); err == nil {
			accepted = socialv2.UpsertFriendshipAccepted{ID: f.id, CreatedAt: millis(s.cfg.Now())}
			update.Delete = &socialv2.UserUpdate{User: contract.User{Address: me}}
		}
	default:
		return badRequest(errUnknownEventKey)
	}

	if err != nil {
		return envelope(err)
	}

	profile := s.profile(other)
	accepted.Friend = &profile
	s.friendshipUpdates.publish(other, update)
	s.legacyEvents.publish(other, legacyEvent(me, update))
	s.logger.Debug("friendship updated", zap.String("from", me), zap.String("to", other))

	return socialv2.UpsertFriendshipResponse{Accepted: &accepted}
}

func (s *Service) getSocialSettings(me string, _ contract.Empty) any {
	return socialv2.GetSocialSettingsResponse{Ok: &socialv2.SocialSettingsOk{Settings: s.graph.socialSettings(me)}}
}

func (s *Service) upsertSocialSettings(me string, req socialv2.UpsertSocialSettingsPayload) any {
	settings := s.graph.updateSettings(me, req)
	return socialv2.UpsertSocialSettingsResponse{Ok: &settings}
}

func (s *Service) getPrivateMessagesSettings(me string, req socialv2.GetPrivateMessagesSettingsPayload) any {
	ok := &socialv2.PrivateMessagesSettingsOk{}
	for _, user := range req.User {
		address := normalize(user.Address)
		if address == "" {
			return badRequest(errMissingAddress)
		}
		ok.Settings = append(ok.Settings, socialv2.PrivateMessagesSettings{
			User:                   contract.User{Address: address},
			PrivateMessagesPrivacy: s.graph.socialSettings(address).PrivateMessagesPrivacy,
			IsFriend:               s.graph.areFriends(me, address),
		})
	}
	return socialv2.GetPrivateMessagesSettingsResponse{Ok: ok}
}

func (s *Service) getBlockingStatus(me string, _ contract.Empty) any {
	blocked, blockedBy := s.graph.blocked(me)
	return socialv2.GetBlockingStatusResponse{BlockedUsers: blocked, BlockedByUsers: blockedBy}
}

func (s *Service) blockedProfile(me, other string) socialv2.BlockedUserProfile {
	p := s.profile(other)
	return socialv2.BlockedUserProfile{
		Address:           p.Address,
		Name:              p.Name,
		HasClaimedName:    p.HasClaimedName,
		ProfilePictureURL: p.ProfilePictureURL,
		BlockedAt:         millis(s.graph.blockedAt(me, other)),
	}
}

func (s *Service) getBlockedUsers(me string, req socialv2.GetBlockedUsersPayload) any {
	blocked, _ := s.graph.blocked(me)
	profiles := make([]socialv2.BlockedUserProfile, 0, len(blocked))
	for _, other := range blocked {
		profiles = append(profiles, s.blockedProfile(me, other))
	}
	page, data := paginate(profiles, req.Pagination)
	return socialv2.GetBlockedUsersResponse{Profiles: page, PaginationData: data}
}

func (s *Service) blockUser(me string, req socialv2.BlockUserPayload) any {
	other := normalize(req.User.Address)
	if _, err := s.graph.block(me, other); err != nil {
		return envelope(err)
	}
	s.publishBlock(me, other, true)
	return socialv2.BlockUserResponse{Ok: &socialv2.BlockUserOk{Profile: s.blockedProfile(me, other)}}
}

func (s *Service) unblockUser(me string, req socialv2.UnblockUserPayload) any {
	other := normalize(req.User.Address)
	if err := s.graph.unblock(me, other); err != nil {
		return envelope(err)
	}
	s.publishBlock(me, other, false)
	return socialv2.UnblockUserResponse{Ok: &socialv2.BlockUserOk{Profile: s.blockedProfile(me, other)}}
}

func (s *Service) publishBlock(me, other string, blocked bool) {
	s.blockUpdates.publish(other, socialv2.BlockUpdate{Address: me, IsBlocked: blocked})
	s.friendshipUpdates.publish(other, socialv2.FriendshipUpdate{
		Block: &socialv2.BlockUpdateData{Address: me, IsBlocked: blocked},
	})
}

// subscribeConnectivity first reports the friends that are online, then
// every change.
func (s *Service) subscribeConnectivity(ctx context.Context, me string, send func(any) error) error {
	events, cancel := s.connectivity.subscribe(me)
	defer cancel()

	for _, friend := range s.graph.friendsOf(me) {
		if !s.isOnline(friend) {
			continue
		}
		update := socialv2.FriendConnectivityUpdate{Friend: s.profile(friend), Status: socialv2.ConnectivityOnline}
		if err := send(update); err != nil {
			return err
		}
	}
	return pump(ctx, events, send)
}
