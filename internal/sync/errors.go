package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a synchronization failure for retry and reporting.
type ErrorKind string

const (
	// KindTransport is a network failure, a non-2xx response or an
	// aborted body read. Recovered by the retry loop.
	KindTransport ErrorKind = "transport"

	// KindIntegrity is a downloaded file whose digest does not match.
	// Recovered by the retry loop.
	KindIntegrity ErrorKind = "integrity"

	// KindRetriesExhausted is returned after every attempt failed with a
	// retryable error.
	KindRetriesExhausted ErrorKind = "retries-exhausted"

	// KindLocalIO is a failure creating, writing, removing or reading
	// filesystem entries under the root.
	KindLocalIO ErrorKind = "local-io"

	// KindMalformedDescriptor is an artifact whose fields contradict its
	// kind, or a manifest that cannot be decoded.
	KindMalformedDescriptor ErrorKind = "malformed-descriptor"

	// KindUnsupportedPlatform is a platform with no manifest branch.
	KindUnsupportedPlatform ErrorKind = "unsupported-platform"

	// KindCanceled is a run stopped by its caller.
	KindCanceled ErrorKind = "canceled"
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	return string(k)
}

// Sentinel errors for errors.Is checks. They match any *Error of the same kind.
var (
	ErrTransport           = &Error{Kind: KindTransport}
	ErrIntegrity           = &Error{Kind: KindIntegrity}
	ErrRetriesExhausted    = &Error{Kind: KindRetriesExhausted}
	ErrLocalIO             = &Error{Kind: KindLocalIO}
	ErrMalformedDescriptor = &Error{Kind: KindMalformedDescriptor}
	ErrUnsupportedPlatform = &Error{Kind: KindUnsupportedPlatform}
	ErrCanceled            = &Error{Kind: KindCanceled}
)

// Error is a classified synchronization error.
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind

	// Path is the artifact path relative to the root, if applicable.
	Path string

	// Op is the operation being performed (plan, fetch, verify, link, ...).
	Op string

	// Attempts is the number of fetch attempts made, for KindRetriesExhausted.
	Attempts int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Op != "" {
		sb.WriteString(" during ")
		sb.WriteString(e.Op)
	}
	if e.Path != "" {
		fmt.Fprintf(&sb, " of %q", e.Path)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&sb, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind ErrorKind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if
// err is not classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable returns true if the fetch pipeline recovers from err by
// trying again.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindIntegrity:
		return true
	default:
		return false
	}
}

// canceled converts a context error into a KindCanceled error.
func canceled(op, path string, err error) *Error {
	if err == nil {
		err = context.Canceled
	}
	return newError(KindCanceled, op, path, err)
}
