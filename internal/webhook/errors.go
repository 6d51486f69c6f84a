package webhook

import "errors"

var (
	// ErrNotFound is returned when no message exists for the given id.
	ErrNotFound = errors.New("webhook message not found")

	// ErrSignatureInvalid is returned when signature verification fails.
	ErrSignatureInvalid = errors.New("invalid webhook signature")

	// ErrMissingFields is returned when a payload lacks required fields.
	ErrMissingFields = errors.New("missing required fields: type, title, content, timestamp")
)
