package messaging

import "errors"

// Service error taxonomy. Handlers map these onto HTTP statuses; none of
// them are retried automatically.
var (
	// ErrAccessDenied means the caller is not a participant of the
	// conversation (or holds the wrong role for a directory lookup).
	ErrAccessDenied = errors.New("access denied")

	// ErrForbidden means the caller may see the resource but not perform
	// the operation (editing someone else's message, deleting without an
	// elevated role).
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput covers empty content and malformed requests.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoFiles is returned by media sends with an empty file set.
	ErrNoFiles = errors.New("no files provided")

	// ErrNotFound covers missing conversations, messages and users.
	ErrNotFound = errors.New("not found")

	// ErrEditWindowExpired is returned when a message is edited more than
	// EditWindow after creation.
	ErrEditWindowExpired = errors.New("edit window expired")

	// ErrUnsupportedOperation is returned for edits of non-text messages.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrDuplicateDirect is returned by stores when inserting a direct
	// conversation loses the uniqueness race; callers re-fetch the winner.
	ErrDuplicateDirect = errors.New("direct conversation already exists")
)
