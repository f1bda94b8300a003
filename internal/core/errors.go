package core

import "errors"

var (
	// ErrValidation marks caller input rejected before any state change.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing user, resume, job or match.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness violation, such as a taken email.
	ErrConflict = errors.New("already exists")

	// ErrStatusChanged means a resume left the status a write was conditioned on.
	ErrStatusChanged = errors.New("status changed concurrently")

	// ErrUnauthorized marks bad credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrObjectNotFound is returned by object storage when a key does not exist.
	ErrObjectNotFound = errors.New("object not found")

	ErrUnsupportedContentType = errors.New("unsupported content type")

	// AI service failures. ErrNoAnswer means the call succeeded but produced nothing.
	ErrQuotaExceeded     = errors.New("ai quota exceeded")
	ErrAITimeout         = errors.New("ai request timed out")
	ErrMalformedResponse = errors.New("ai response malformed")
	ErrNoAnswer          = errors.New("ai returned no answer")
)
