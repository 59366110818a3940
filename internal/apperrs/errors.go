package apperrs

import "errors"

// Sentinel errors for the short-link domain. Services return these (possibly
// wrapped); controllers map them to HTTP statuses.
var (
	// ErrInvalidURL covers malformed, oversized and self-referential long URLs.
	ErrInvalidURL = errors.New("invalid url")

	// ErrUnsupportedScheme is reported separately from ErrInvalidURL because
	// it maps to a different HTTP status (422 vs 400).
	ErrUnsupportedScheme = errors.New("unsupported url scheme")

	// ErrConflict means the requested short code is already taken.
	ErrConflict = errors.New("short code already in use")

	// ErrNotFound means no short link exists for the code.
	ErrNotFound = errors.New("short link not found")

	// ErrGone means the short link exists (or existed) but its expiry has passed.
	ErrGone = errors.New("short link expired")

	// ErrUnavailable means a required backend (sequence counter, database)
	// could not be reached. The request must be aborted without partial effects.
	ErrUnavailable = errors.New("backend unavailable")
)
