// Package friendships is the legacy social service contract. Every request
// carries the synapse bearer token obtained at login.
package friendships

import "github.com/luciancaetano/socialnet/contract"

// ServiceName is the module loaded on the "social" port.
const ServiceName = "FriendshipsService"

// Procedure names exposed by FriendshipsService.
const (
	MethodGetFriends                       = "GetFriends"
	MethodGetMutualFriends                 = "GetMutualFriends"
	MethodGetRequestEvents                 = "GetRequestEvents"
	MethodUpdateFriendshipEvent            = "UpdateFriendshipEvent"
	MethodSubscribeFriendshipEventsUpdates = "SubscribeFriendshipEventsUpdates"
)

// Payload is the request of methods that only need the token.
type Payload struct {
	SynapseToken string `json:"synapseToken"`
}

// AuthToken wraps the token for requests that carry other fields.
type AuthToken struct {
	SynapseToken string `json:"synapseToken"`
}

type MutualFriendsPayload struct {
	User      contract.User `json:"user"`
	AuthToken AuthToken     `json:"authToken"`
}

// UsersResponse is one page of a users stream.
type UsersResponse struct {
	Users []contract.User `json:"users,omitempty"`
	contract.Errors
}

type RequestResponse struct {
	User      contract.User `json:"user"`
	CreatedAt int64         `json:"createdAt"`
	Message   string        `json:"message,omitempty"`
}

type Requests struct {
	Total int               `json:"total"`
	Items []RequestResponse `json:"items,omitempty"`
}

// RequestEvents groups pending requests by direction.
type RequestEvents struct {
	Outgoing *Requests `json:"outgoing,omitempty"`
	Incoming *Requests `json:"incoming,omitempty"`
}

type RequestEventsResponse struct {
	Events *RequestEvents `json:"events,omitempty"`
	contract.Errors
}

type RequestPayload struct {
	User    contract.User `json:"user"`
	Message string        `json:"message,omitempty"`
}

type UserPayload struct {
	User contract.User `json:"user"`
}

// FriendshipEventPayload carries exactly one friendship transition.
type FriendshipEventPayload struct {
	Request *RequestPayload `json:"request,omitempty"`
	Accept  *UserPayload    `json:"accept,omitempty"`
	Reject  *UserPayload    `json:"reject,omitempty"`
	Cancel  *UserPayload    `json:"cancel,omitempty"`
	Delete  *UserPayload    `json:"delete,omitempty"`
}

type UpdateFriendshipPayload struct {
	Event     FriendshipEventPayload `json:"event"`
	AuthToken AuthToken              `json:"authToken"`
}

type UserResponse struct {
	User contract.User `json:"user"`
}

// FriendshipEventResponse is the transition as acknowledged by the server.
type FriendshipEventResponse struct {
	Request *RequestResponse `json:"request,omitempty"`
	Accept  *UserResponse    `json:"accept,omitempty"`
	Reject  *UserResponse    `json:"reject,omitempty"`
	Cancel  *UserResponse    `json:"cancel,omitempty"`
	Delete  *UserResponse    `json:"delete,omitempty"`
}

type UpdateFriendshipResponse struct {
	Event *FriendshipEventResponse `json:"event,omitempty"`
	contract.Errors
}

type FriendshipEventResponses struct {
	Responses []FriendshipEventResponse `json:"responses,omitempty"`
}

type SubscribeFriendshipEventsUpdatesResponse struct {
	Events *FriendshipEventResponses `json:"events,omitempty"`
	contract.Errors
}
