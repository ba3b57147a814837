// Package socialv2 is the social service contract used over signed-header
// sessions. Requests carry no credential: authentication is bound to the
// WebSocket connection.
package socialv2

import "github.com/luciancaetano/socialnet/contract"

// ServiceName is the module loaded on the "social" port.
const ServiceName = "SocialService"

// Procedure names exposed by SocialService.
const (
	MethodGetFriends                           = "GetFriends"
	MethodGetMutualFriends                     = "GetMutualFriends"
	MethodGetPendingFriendshipRequests         = "GetPendingFriendshipRequests"
	MethodGetSentFriendshipRequests            = "GetSentFriendshipRequests"
	MethodGetFriendshipStatus                  = "GetFriendshipStatus"
	MethodUpsertFriendship                     = "UpsertFriendship"
	MethodGetSocialSettings                    = "GetSocialSettings"
	MethodUpsertSocialSettings                 = "UpsertSocialSettings"
	MethodGetPrivateMessagesSettings           = "GetPrivateMessagesSettings"
	MethodGetBlockingStatus                    = "GetBlockingStatus"
	MethodGetBlockedUsers                      = "GetBlockedUsers"
	MethodBlockUser                            = "BlockUser"
	MethodUnblockUser                          = "UnblockUser"
	MethodSubscribeToFriendConnectivityUpdates = "SubscribeToFriendConnectivityUpdates"
	MethodSubscribeToFriendshipUpdates         = "SubscribeToFriendshipUpdates"
	MethodSubscribeToBlockUpdates              = "SubscribeToBlockUpdates"
)

type FriendshipStatus int

const (
	FriendshipStatusRequestSent FriendshipStatus = iota
	FriendshipStatusRequestReceived
	FriendshipStatusCanceled
	FriendshipStatusAccepted
	FriendshipStatusRejected
	FriendshipStatusDeleted
	FriendshipStatusBlocked
	FriendshipStatusNone
	FriendshipStatusBlockedBy
)

type ConnectivityStatus int

const (
	ConnectivityOnline ConnectivityStatus = iota
	ConnectivityOffline
	ConnectivityAway
)

type PrivateMessagePrivacySetting int

const (
	PrivateMessagesAll PrivateMessagePrivacySetting = iota
	PrivateMessagesOnlyFriends
)

type BlockedUsersMessagesVisibilitySetting int

const (
	ShowMessages BlockedUsersMessagesVisibilitySetting = iota
	DoNotShowMessages
)

type GetFriendsPayload struct {
	Pagination *contract.Pagination `json:"pagination,omitempty"`
}

type PaginatedFriendsProfilesResponse struct {
	Friends        []contract.FriendProfile `json:"friends,omitempty"`
	PaginationData *contract.PaginationData `json:"paginationData,omitempty"`
	contract.Errors
}

type GetMutualFriendsPayload struct {
	User       contract.User        `json:"user"`
	Pagination *contract.Pagination `json:"pagination,omitempty"`
}

type GetFriendshipRequestsPayload struct {
	Pagination *contract.Pagination `json:"pagination,omitempty"`
}

type FriendshipRequestResponse struct {
	Friend    contract.FriendProfile `json:"friend"`
	Message   string                 `json:"message,omitempty"`
	CreatedAt int64                  `json:"createdAt"`
	ID        string                 `json:"id"`
}

type FriendshipRequests struct {
	Requests []FriendshipRequestResponse `json:"requests,omitempty"`
}

type PaginatedFriendshipRequestsResponse struct {
	Requests       *FriendshipRequests      `json:"requests,omitempty"`
	PaginationData *contract.PaginationData `json:"paginationData,omitempty"`
	contract.Errors
}

type GetFriendshipStatusPayload struct {
	User contract.User `json:"user"`
}

type FriendshipStatusOk struct {
	Status  FriendshipStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

type GetFriendshipStatusResponse struct {
	Accepted *FriendshipStatusOk `json:"accepted,omitempty"`
	contract.Errors
}

type RequestAction struct {
	User    contract.User `json:"user"`
	Message string        `json:"message,omitempty"`
}

type UserAction struct {
	User contract.User `json:"user"`
}

// UpsertFriendshipPayload carries exactly one friendship transition.
type UpsertFriendshipPayload struct {
	Request *RequestAction `json:"request,omitempty"`
	Accept  *UserAction    `json:"accept,omitempty"`
	Reject  *UserAction    `json:"reject,omitempty"`
	Delete  *UserAction    `json:"delete,omitempty"`
	Cancel  *UserAction    `json:"cancel,omitempty"`
}

type UpsertFriendshipAccepted struct {
	ID        string                  `json:"id"`
	CreatedAt int64                   `json:"createdAt"`
	Friend    *contract.FriendProfile `json:"friend,omitempty"`
	Message   string                  `json:"message,omitempty"`
}

type UpsertFriendshipResponse struct {
	Accepted *UpsertFriendshipAccepted `json:"accepted,omitempty"`
	contract.Errors
}

type FriendConnectivityUpdate struct {
	Friend contract.FriendProfile `json:"friend"`
	Status ConnectivityStatus     `json:"status"`
	contract.Errors
}

type UserUpdate struct {
	User contract.User `json:"user"`
}

type BlockUpdateData struct {
	Address   string `json:"address"`
	IsBlocked bool   `json:"isBlocked"`
}

// FriendshipUpdate is one element of the friendship updates stream; exactly
// one transition field is set.
type FriendshipUpdate struct {
	Request *FriendshipRequestResponse `json:"request,omitempty"`
	Accept  *UserUpdate                `json:"accept,omitempty"`
	Reject  *UserUpdate                `json:"reject,omitempty"`
	Delete  *UserUpdate                `json:"delete,omitempty"`
	Cancel  *UserUpdate                `json:"cancel,omitempty"`
	Block   *BlockUpdateData           `json:"block,omitempty"`
	contract.Errors
}

type SocialSettings struct {
	PrivateMessagesPrivacy         PrivateMessagePrivacySetting          `json:"privateMessagesPrivacy"`
	BlockedUsersMessagesVisibility BlockedUsersMessagesVisibilitySetting `json:"blockedUsersMessagesVisibility"`
}

type SocialSettingsOk struct {
	Settings SocialSettings `json:"settings"`
}

type GetSocialSettingsResponse struct {
	Ok *SocialSettingsOk `json:"ok,omitempty"`
	contract.Errors
}

// UpsertSocialSettingsPayload updates only the fields that are set.
type UpsertSocialSettingsPayload struct {
	PrivateMessagesPrivacy         *PrivateMessagePrivacySetting          `json:"privateMessagesPrivacy,omitempty"`
	BlockedUsersMessagesVisibility *BlockedUsersMessagesVisibilitySetting `json:"blockedUsersMessagesVisibility,omitempty"`
}

type UpsertSocialSettingsResponse struct {
	Ok *SocialSettings `json:"ok,omitempty"`
	contract.Errors
}

type GetPrivateMessagesSettingsPayload struct {
	User []contract.User `json:"user"`
}

type PrivateMessagesSettings struct {
	User                   contract.User                `json:"user"`
	PrivateMessagesPrivacy PrivateMessagePrivacySetting `json:"privateMessagesPrivacy"`
	IsFriend               bool                         `json:"isFriend"`
}

type PrivateMessagesSettingsOk struct {
	Settings []PrivateMessagesSettings `json:"settings,omitempty"`
}

type GetPrivateMessagesSettingsResponse struct {
	Ok *PrivateMessagesSettingsOk `json:"ok,omitempty"`
	contract.Errors
}

type BlockUpdate struct {
	Address   string `json:"address"`
	IsBlocked bool   `json:"isBlocked"`
	contract.Errors
}

type GetBlockingStatusResponse struct {
	BlockedUsers   []string `json:"blockedUsers,omitempty"`
	BlockedByUsers []string `json:"blockedByUsers,omitempty"`
	contract.Errors
}

type GetBlockedUsersPayload struct {
	Pagination *contract.Pagination `json:"pagination,omitempty"`
}

type BlockedUserProfile struct {
	Address           string `json:"address"`
	Name              string `json:"name,omitempty"`
	HasClaimedName    bool   `json:"hasClaimedName,omitempty"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
	BlockedAt         int64  `json:"blockedAt,omitempty"`
}

type GetBlockedUsersResponse struct {
	Profiles       []BlockedUserProfile     `json:"profiles,omitempty"`
	PaginationData *contract.PaginationData `json:"paginationData,omitempty"`
	contract.Errors
}

type BlockUserPayload struct {
	User contract.User `json:"user"`
}

type BlockUserOk struct {
	Profile BlockedUserProfile `json:"profile"`
}

type BlockUserResponse struct {
	Ok *BlockUserOk `json:"ok,omitempty"`
	contract.Errors
}

type UnblockUserPayload struct {
	User contract.User `json:"user"`
}

type UnblockUserResponse struct {
	Ok *BlockUserOk `json:"ok,omitempty"`
	contract.Errors
}
