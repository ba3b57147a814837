package socialnet

import (
	"errors"
	"io"

	"github.com/luciancaetano/socialnet/contract"
)

var (
	// ErrRemote matches every error translated from a Response Envelope.
	ErrRemote = errors.New("remote service error")

	// ErrNotConnected is returned by Send while the socket is not open.
	ErrNotConnected = errors.New(ErrNotConnectedMessage)
	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New(ErrAlreadyConnectedMessage)
	// ErrConnectionClosed fails pending calls and streams once the transport closes.
	ErrConnectionClosed = errors.New(ErrConnectionClosedMessage)
	// ErrSessionUsed is returned when a client is connected a second time.
	ErrSessionUsed = errors.New(ErrSessionUsedMessage)
	// ErrSessionNotReady is returned by calls made before the session is ready.
	ErrSessionNotReady = errors.New(ErrSessionNotReadyMessage)
	// ErrIncompleteResponse is returned when a successful response lacks the
	// field the operation projects.
	ErrIncompleteResponse = errors.New(ErrIncompleteMessage)
)

type remoteError struct {
	Message string
}

func (e remoteError) Error() string {
	return e.Message
}

func (remoteError) Is(target error) bool {
	return target == ErrRemote
}

// BadRequestError reports a request the service rejected as malformed or invalid.
type BadRequestError struct{ remoteError }

// ForbiddenError reports an operation the caller is not allowed to perform.
type ForbiddenError struct{ remoteError }

// InternalServerError reports a failure inside the service.
type InternalServerError struct{ remoteError }

// TooManyRequestsError reports that the caller was rate limited.
type TooManyRequestsError struct{ remoteError }

// UnauthorizedError reports a missing or rejected credential.
type UnauthorizedError struct{ remoteError }

// AuthenticationError is returned when the login exchange fails or yields no
// usable token. It is fatal to session construction.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	return ErrSynapseLoginPrefix + ": " + e.Message
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// NewAuthenticationError uses the cause's message when there is one.
func NewAuthenticationError(cause error) *AuthenticationError {
	if cause == nil || cause.Error() == "" {
		return &AuthenticationError{Message: ErrUnknownLoginFailure, Err: cause}
	}
	return &AuthenticationError{Message: cause.Error(), Err: cause}
}

// TransportError wraps a socket-level failure.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err, keeping its text as the message.
func NewTransportError(err error) *TransportError {
	if err == nil {
		return &TransportError{Message: "unknown transport error"}
	}
	return &TransportError{Message: err.Error(), Err: err}
}

// ProcessErrors inspects the error variants of a Response Envelope and returns
// the first populated one as a typed error, in the order bad-request,
// forbidden, internal-server-error, too-many-requests, unauthorized. It
// returns nil when no variant is populated.
func ProcessErrors(response contract.Enveloped) error {
	v := response.Variants()
	switch {
	case v.BadRequestError != nil:
		return &BadRequestError{remoteError{messageOf(v.BadRequestError)}}
	case v.ForbiddenError != nil:
		return &ForbiddenError{remoteError{messageOf(v.ForbiddenError)}}
	case v.InternalServerError != nil:
		return &InternalServerError{remoteError{messageOf(v.InternalServerError)}}
	case v.TooManyRequestsError != nil:
		return &TooManyRequestsError{remoteError{messageOf(v.TooManyRequestsError)}}
	case v.UnauthorizedError != nil:
		return &UnauthorizedError{remoteError{messageOf(v.UnauthorizedError)}}
	}
	return nil
}

// Translate returns response unchanged when it carries no error variant.
func Translate[T contract.Enveloped](response T) (T, error) {
	if err := ProcessErrors(response); err != nil {
		var zero T
		return zero, err
	}
	return response, nil
}

func messageOf(m *contract.ErrorMessage) string {
	if m.Message == "" {
		return ErrUnknownErrorMessage
	}
	return m.Message
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
