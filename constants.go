package socialnet

// Port and login constants shared by both contract versions.
const (
	// ServicePortName is the logical port opened on every RPC session.
	ServicePortName = "social"

	// LoginPath is appended to the synapse URL for the bearer-token exchange.
	LoginPath = "/_matrix/client/r0/login"

	// LogoutPath revokes a bearer token when a legacy client disconnects.
	LogoutPath = "/_matrix/client/r0/logout"

	// LoginType and LoginIdentifierType are the fixed tags of the login body.
	LoginType           = "m.login.decentraland"
	LoginIdentifierType = "m.id.user"
)

// Standard error messages
const (
	// Envelope errors
	ErrUnknownErrorMessage = "Unknown error"
	ErrIncompleteMessage   = "incomplete response"

	// Authentication errors
	ErrSynapseLoginPrefix  = "The synapse token could not be retrieved"
	ErrUnknownLoginFailure = "unknown error"

	// Connection errors
	ErrNotConnectedMessage     = "transport is not connected"
	ErrAlreadyConnectedMessage = "transport already connected"
	ErrConnectionClosedMessage = "connection is closed"
	ErrSessionUsedMessage      = "session already opened"
	ErrSessionNotReadyMessage  = "session is not ready"
)
