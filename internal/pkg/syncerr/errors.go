package syncerr

import (
	"errors"
	"fmt"
)

// Kind classifies a sync failure for the caller. The orchestrator is the
// only place that decides retryability; clients just raise typed errors.
type Kind int

const (
	// KindTransient covers network errors, 5xx and rate limits. The whole
	// operation is safe to retry because all remote writes are idempotent
	// upserts keyed by activity id.
	KindTransient Kind = iota
	// KindUnauthorized means a stale or revoked credential. Not recoverable
	// without new user consent.
	KindUnauthorized
	// KindInvalid marks malformed input or a missing precondition (e.g. no
	// calendar link). Signaled back as a client error, never retried here.
	KindInvalid
	// KindIgnore is not an error: an intentionally skipped event.
	KindIgnore
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalid:
		return "invalid"
	case KindIgnore:
		return "ignore"
	default:
		return "transient"
	}
}

// Error is a classified sync failure.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Unauthorized builds a KindUnauthorized error.
func Unauthorized(reason string, err error) *Error {
	return &Error{Kind: KindUnauthorized, Reason: reason, Err: err}
}

// Transient builds a KindTransient error.
func Transient(reason string, err error) *Error {
	return &Error{Kind: KindTransient, Reason: reason, Err: err}
}

// Invalid builds a KindInvalid error.
func Invalid(reason string, err error) *Error {
	return &Error{Kind: KindInvalid, Reason: reason, Err: err}
}

// Ignored builds a KindIgnore marker with the given reason.
func Ignored(reason string) *Error {
	return &Error{Kind: KindIgnore, Reason: reason}
}

// UpstreamError is raised by the low-level provider clients on any non-2xx
// response. A 400/401 status signals a stale credential rather than a data
// error, which is why the status is carried instead of being flattened into
// a message.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Unauthorized reports whether the status means the credential is stale.
func (e *UpstreamError) Unauthorized() bool {
	return e.StatusCode == 400 || e.StatusCode == 401
}

// CredentialRefreshError is raised when a provider token endpoint rejects a
// refresh exchange.
type CredentialRefreshError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *CredentialRefreshError) Error() string {
	return fmt.Sprintf("refreshing %s credentials failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
}

func (e *CredentialRefreshError) Unwrap() error {
	return e.Err
}

// KindOf resolves the taxonomy kind for any error produced inside the
// engine. Unknown errors default to transient so the caller retries.
func KindOf(err error) Kind {
	if err == nil {
		return KindIgnore
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		if ue.Unauthorized() {
			return KindUnauthorized
		}
		return KindTransient
	}

	var ce *CredentialRefreshError
	if errors.As(err, &ce) {
		if ce.StatusCode == 400 || ce.StatusCode == 401 {
			return KindUnauthorized
		}
		return KindTransient
	}

	return KindTransient
}

// Reason extracts the classifier reason when present.
func Reason(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Reason
	}
	return ""
}
