package esplink

import "errors"

var (
	// ErrConnectionClosed reports an operation on a closed session. It is
	// also the failure every pending request receives when the session
	// tears down underneath it.
	ErrConnectionClosed = errors.New("esplink: connection closed")

	// ErrTimeout reports a request whose context deadline expired before
	// the device answered.
	ErrTimeout = errors.New("esplink: request timed out")

	// ErrInvalidPassword reports a login rejected by the device. The
	// connection stays usable; retrying with a different password is
	// legal.
	ErrInvalidPassword = errors.New("esplink: invalid password")

	// ErrAuthNotRequired reports Authenticate on a device that has no
	// password configured.
	ErrAuthNotRequired = errors.New("esplink: device does not require authentication")

	// ErrAuthRequired reports Session on a device that demands a
	// password.
	ErrAuthRequired = errors.New("esplink: device requires authentication")

	// ErrUnexpectedMessage reports a frame whose type tag does not fit
	// the protocol phase, such as a non-hello answer during the
	// handshake.
	ErrUnexpectedMessage = errors.New("esplink: unexpected message")

	// ErrHandshakeFailed wraps any failure between Connect and the
	// populated device snapshot.
	ErrHandshakeFailed = errors.New("esplink: handshake failed")

	// ErrUnsupportedFeature reports a device speaking a protocol major
	// version this client does not implement.
	ErrUnsupportedFeature = errors.New("esplink: unsupported feature")

	// ErrRequestPending reports a second concurrent request awaiting the
	// same response type. Correlation is by type tag, so only one
	// request per kind may be outstanding.
	ErrRequestPending = errors.New("esplink: request already pending")

	// ErrInvalidState reports an operation issued in the wrong protocol
	// phase, such as a second Connect.
	ErrInvalidState = errors.New("esplink: invalid connection state")
)
