package diskimage

import "errors"

// Failure classes. Everything the library returns wraps one of these or
// tools.ErrToolNotFound, so callers can sort failures with errors.Is.
var (
	// ErrInvalidArguments means the configuration asks for something that
	// cannot be expressed, such as a flag the table type cannot hold.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrCheckFailed means a pre-commit capacity or tool availability check
	// did not pass.
	ErrCheckFailed = errors.New("check failed")

	// ErrUnknown covers failures outside the caller's control, such as a
	// partition landing somewhere else than requested.
	ErrUnknown = errors.New("unknown error")
)
