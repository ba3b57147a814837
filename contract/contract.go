// Package contract holds the payload shapes shared by both versions of the
// social service contract.
//
// Every response is a Response Envelope: a success payload plus the fixed set
// of error variants in Errors. At most one of them is populated; callers must
// run the envelope through socialnet.ProcessErrors before reading the payload.
package contract

// ErrorMessage is the body of every error variant. Message may be empty when
// the server omits it.
type ErrorMessage struct {
	Message string `json:"message,omitempty"`
}

// Errors is the error half of a Response Envelope. Responses embed it so the
// variants are flattened into the response JSON object.
type Errors struct {
	BadRequestError      *ErrorMessage `json:"badRequestError,omitempty"`
	ForbiddenError       *ErrorMessage `json:"forbiddenError,omitempty"`
	InternalServerError  *ErrorMessage `json:"internalServerError,omitempty"`
	TooManyRequestsError *ErrorMessage `json:"tooManyRequestsError,omitempty"`
	UnauthorizedError    *ErrorMessage `json:"unauthorizedError,omitempty"`
}

// Variants returns the error variants of the envelope.
func (e Errors) Variants() Errors {
	return e
}

// IsZero reports whether no error variant is populated.
func (e Errors) IsZero() bool {
	return e.BadRequestError == nil &&
		e.ForbiddenError == nil &&
		e.InternalServerError == nil &&
		e.TooManyRequestsError == nil &&
		e.UnauthorizedError == nil
}

// Enveloped is implemented by every response type through the embedded Errors.
type Enveloped interface {
	Variants() Errors
}

// User identifies an account by its wallet address.
type User struct {
	Address string `json:"address"`
}

// Pagination selects a page of a listing.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// PaginationData describes the page returned by a listing.
type PaginationData struct {
	Total int `json:"total"`
	Page  int `json:"page"`
}

// FriendProfile is the public profile of a friend as returned by listings.
type FriendProfile struct {
	Address           string `json:"address"`
	Name              string `json:"name,omitempty"`
	HasClaimedName    bool   `json:"hasClaimedName,omitempty"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
}

// Empty is the request of methods without arguments.
type Empty struct{}

// Users builds a slice of User from addresses.
func Users(addresses ...string) []User {
	users := make([]User, 0, len(addresses))
	for _, address := range addresses {
		users = append(users, User{Address: address})
	}
	return users
}
