package attachments

import "errors"

// Pipeline failure classes. Validation failures (size, type) are terminal
// for the request; transport failures are retryable by the user and carry a
// distinct sentinel so callers can tell the two apart.
var (
	ErrPayloadTooLarge = errors.New("attachment exceeds size limit")
	ErrUnsupportedType = errors.New("attachment type not allowed")
	ErrUploadTransport = errors.New("attachment upload failed")
)
