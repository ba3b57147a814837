package mockserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luciancaetano/socialnet/contract/socialv2"
)

var (
	errSelf            = errors.New("cannot target yourself")
	errNoRequest       = errors.New("no pending friendship request")
	errAlreadyFriends  = errors.New("already friends")
	errAlreadyPending  = errors.New("friendship request already pending")
	errNotFriends      = errors.New("not friends")
	errBlocked         = errors.New("user is blocked")
	errMissingAddress  = errors.New("missing user address")
	errUnknownEventKey = errors.New("exactly one friendship transition is required")
)

type request struct {
	id        string
	from      string
	to        string
	message   string
	createdAt time.Time
}

type friendship struct {
	id        string
	createdAt time.Time
}

// graph is the in-memory social graph. Addresses are compared lower-cased.
type graph struct {
	mu       sync.RWMutex
	now      func() time.Time
	friends  map[pair]friendship
	requests map[pair]request
	blocks   map[string]map[string]time.Time
	settings map[string]socialv2.SocialSettings
	profiles map[string]string
}

// pair is an unordered pair of addresses.
type pair struct {
	a, b string
}

func newPair(x, y string) pair {
	if x > y {
		x, y = y, x
	}
	return pair{x, y}
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func newGraph(now func() time.Time) *graph {
	return &graph{
		now:      now,
		friends:  make(map[pair]friendship),
		requests: make(map[pair]request),
		blocks:   make(map[string]map[string]time.Time),
		settings: make(map[string]socialv2.SocialSettings),
		profiles: make(map[string]string),
	}
}

func validate(me, other string) error {
	if other == "" {
		return errMissingAddress
	}
	if me == other {
		return errSelf
	}
	return nil
}

func (g *graph) setName(address, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.profiles[normalize(address)] = name
}

func (g *graph) name(address string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.profiles[address]
}

func (g *graph) blockedLocked(x, y string) bool {
	_, xy := g.blocks[x][y]
	_, yx := g.blocks[y][x]
	return xy || yx
}

func (g *graph) request(me, other, message string) (request, error) {
	me, other = normalize(me), normalize(other)
	if err := validate(me, other); err != nil {
		return request{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	p := newPair(me, other)
	if g.blockedLocked(me, other) {
		return request{}, errBlocked
	}
	if _, ok := g.friends[p]; ok {
		return request{}, errAlreadyFriends
	}
	if _, ok := g.requests[p]; ok {
		return request{}, errAlreadyPending
	}

	r := request{id: uuid.NewString(), from: me, to: other, message: message, createdAt: g.now()}
	g.requests[p] = r
	return r, nil
}

// resolve removes the pending request between me and other when it goes in
// the wanted direction.
func (g *graph) resolve(me, other string, incoming bool) (request, error) {
	p := newPair(me, other)
	r, ok := g.requests[p]
	if !ok {
		return request{}, errNoRequest
	}
	if incoming && r.to != me || !incoming && r.from != me {
		return request{}, errNoRequest
	}
	delete(g.requests, p)
	return r, nil
}

func (g *graph) accept(me, other string) (friendship, error) {
	me, other = normalize(me), normalize(other)
	if err := validate(me, other); err != nil {
		return friendship{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.resolve(me, other, true); err != nil {
		return friendship{}, err
	}
	f := friendship{id: uuid.NewString(), createdAt: g.now()}
	g.friends[newPair(me, other)] = f
	return f, nil
}

func (g *graph) reject(me, other string) (request, error) {
	me, other = normalize(me), normalize(other)
	if err := validate(me, other); err != nil {
		return request{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolve(me, other, true)
}

func (g *graph) cancel(me, other string) (request, error) {
	me, other = normalize(me), normalize(other)
	if err := validate(me, other); err != nil {
		return request{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolve(me, other, false)
}

func (g *graph) unfriend(me, other string) (friendship, error) {
	me, other = normalize(me), normalize(other)
	if err := validate(me, other); err != nil {
		return friendship{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	p := newPair(me, other)
	f, ok := g.friends[p]
	if !ok {
		return friendship{}, errNotFriends
	}
	delete(g.friends, p)
	return f, nil
}

func (g *graph) block(me, other string) (time.Time, error) {
	me, other = normalize(me), normalize(other)
	if err := validate(me, other); err != nil {
		return time.Time{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.blocks[me] == nil {
		g.blocks[me] = make(map[string]time.Time)
	}
	at, ok := g.blocks[me][other]
	if !ok {
		at = g.now()
		g.blocks[me][other] = at
	}

	p := newPair(me, other)
	delete(g.friends, p)
	delete(g.requests, p)
	return at, nil
}

func (g *graph) unblock(me, other string) error {
	me, other = normalize(me), normalize(other)
	if err := validate(me, other); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.blocks[me], other)
	return nil
}

func (g *graph) friendsOf(me string) []string {
	me = normalize(me)

	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []string
	for p := range g.friends {
		switch me {
		case p.a:
			out = append(out, p.b)
		case p.b:
			out = append(out, p.a)
		}
	}
	sort.Strings(out)
	return out
}

func (g *graph) mutualFriends(me, other string) []string {
	theirs := make(map[string]bool)
	for _, f := range g.friendsOf(other) {
		theirs[f] = true
	}

	var out []string
	for _, f := range g.friendsOf(me) {
		if theirs[f] {
			out = append(out, f)
		}
	}
	return out
}

// requestsOf returns the pending requests sent to me (incoming) or by me,
// oldest first.
func (g *graph) requestsOf(me string, incoming bool) []request {
	me = normalize(me)

	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []request
	for _, r := range g.requests {
		if incoming && r.to == me || !incoming && r.from == me {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].id < out[j].id
		}
		return out[i].createdAt.Before(out[j].createdAt)
	})
	return out
}

func (g *graph) status(me, other string) socialv2.FriendshipStatus {
	me, other = normalize(me), normalize(other)

	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.blocks[me][other]; ok {
		return socialv2.FriendshipStatusBlocked
	}
	if _, ok := g.blocks[other][me]; ok {
		return socialv2.FriendshipStatusBlockedBy
	}

	p := newPair(me, other)
	if _, ok := g.friends[p]; ok {
		return socialv2.FriendshipStatusAccepted
	}
	if r, ok := g.requests[p]; ok {
		if r.from == me {
			return socialv2.FriendshipStatusRequestSent
		}
		return socialv2.FriendshipStatusRequestReceived
	}
	return socialv2.FriendshipStatusNone
}

func (g *graph) blocked(me string) (blocked []string, blockedBy []string) {
	me = normalize(me)

	g.mu.RLock()
	defer g.mu.RUnlock()

	for other := range g.blocks[me] {
		blocked = append(blocked, other)
	}
	for other, targets := range g.blocks {
		if _, ok := targets[me]; ok {
			blockedBy = append(blockedBy, other)
		}
	}
	sort.Strings(blocked)
	sort.Strings(blockedBy)
	return blocked, blockedBy
}

func (g *graph) blockedAt(me, other string) time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.blocks[normalize(me)][normalize(other)]
}

func (g *graph) socialSettings(me string) socialv2.SocialSettings {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.settings[normalize(me)]
}

func (g *graph) updateSettings(me string, update socialv2.UpsertSocialSettingsPayload) socialv2.SocialSettings {
	me = normalize(me)

	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.settings[me]
	if update.PrivateMessagesPrivacy != nil {
		s.PrivateMessagesPrivacy = *update.PrivateMessagesPrivacy
	}
	if update.BlockedUsersMessagesVisibility != nil {
		s.BlockedUsersMessagesVisibility = *update.BlockedUsersMessagesVisibility
	}
	g.settings[me] = s
	return s
}

func (g *graph) areFriends(x, y string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.friends[newPair(normalize(x), normalize(y))]
	return ok
}
