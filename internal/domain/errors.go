package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure for retry and reporting decisions.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	// KindTransient covers timeouts, rate limiting and transient server errors.
	KindTransient
	// KindAccessRestricted means the content is behind a permission barrier.
	KindAccessRestricted
	// KindNotFound means the remote resource does not exist.
	KindNotFound
	// KindPermanent covers malformed responses and other non-retryable failures.
	KindPermanent
	// KindValidation means the remote store rejected a request payload.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAccessRestricted:
		return "access_restricted"
	case KindNotFound:
		return "not_found"
	case KindPermanent:
		return "permanent"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Sentinel errors.
var (
	ErrAccessRestricted = errors.New("access restricted")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrStoreUnavailable = errors.New("checkpoint store unavailable")
)

// Error is a classified failure from a remote call.
type Error struct {
	Kind Kind
	// Op names the failing operation, e.g. "fetch" or "append_blocks".
	Op string
	// Status is the HTTP status code, when one was received.
	Status int
	// RetryAfter is the server-provided backoff hint, if any.
	RetryAfter time.Duration
	// Chunk is the failing chunk index for publish errors, NoChunk otherwise.
	Chunk int
	Err   error
}

// NewError builds a classified error for op.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Chunk: NoChunk, Err: err}
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Chunk != NoChunk {
		msg += fmt.Sprintf(" at chunk %d", e.Chunk)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels so callers can use errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAccessRestricted:
		return e.Kind == KindAccessRestricted
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrValidation:
		return e.Kind == KindValidation
	default:
		return false
	}
}

// KindOf returns the kind of the first *Error in err's chain.
// Context cancellation is reported as KindPermanent so it is never retried.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}

	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// RetryAfterOf returns the RetryAfter hint carried by err, or zero.
func RetryAfterOf(err error) time.Duration {
	var de *Error
	if errors.As(err, &de) {
		return de.RetryAfter
	}
	return 0
}

// ChunkOf returns the failing chunk index carried by err, or NoChunk.
func ChunkOf(err error) int {
	var de *Error
	if errors.As(err, &de) {
		return de.Chunk
	}
	return NoChunk
}
