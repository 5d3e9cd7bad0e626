package relay

import "errors"

var (
	// ErrEmptyName rejects registrations whose username is empty after trimming.
	ErrEmptyName = errors.New("username cannot be empty")

	// ErrNameInUse rejects registrations whose username is live in the
	// registry or already claimed in the user directory.
	ErrNameInUse = errors.New("username already in use")

	// ErrRecipientNotFound reports a routed message whose receiver is not
	// currently connected.
	ErrRecipientNotFound = errors.New("recipient not found")

	// errMalformedFrame marks inbound bytes that do not decode into a frame.
	// Non-fatal while a session is active, fatal before registration.
	errMalformedFrame = errors.New("malformed frame")
)
