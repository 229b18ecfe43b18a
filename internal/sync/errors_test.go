package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := map[string]struct {
		err  *Error
		want string
	}{
		"kind only": {
			err:  &Error{Kind: KindUnsupportedPlatform},
			want: "unsupported-platform",
		},
		"full": {
			err:  &Error{Kind: KindRetriesExhausted, Op: "fetch", Path: "bin/java", Attempts: 5, Err: errors.New("boom")},
			want: `retries-exhausted during fetch of "bin/java" after 5 attempts: boom`,
		},
		"no path": {
			err:  &Error{Kind: KindLocalIO, Op: "mkdir", Err: errors.New("denied")},
			want: "local-io during mkdir: denied",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("wrapped: %w", newError(KindTransport, "fetch", "a", cause))

	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrIntegrity)
	assert.ErrorIs(t, err, cause)

	var se *Error
	if assert.ErrorAs(t, err, &se) {
		assert.Equal(t, "a", se.Path)
	}

	digest := newError(KindIntegrity, "verify", "a", &DigestError{Path: "a", Expected: "x", Got: "y"})
	assert.ErrorIs(t, digest, errDigestMismatch)
	assert.ErrorIs(t, canceled("fetch", "a", context.Canceled), context.Canceled)
}

func TestKindOfAndIsRetryable(t *testing.T) {
	tests := map[string]struct {
		err       error
		kind      ErrorKind
		retryable bool
	}{
		"nil":         {err: nil, kind: ""},
		"plain":       {err: errors.New("x"), kind: ""},
		"transport":   {err: ErrTransport, kind: KindTransport, retryable: true},
		"integrity":   {err: newError(KindIntegrity, "verify", "a", nil), kind: KindIntegrity, retryable: true},
		"local io":    {err: ErrLocalIO, kind: KindLocalIO},
		"exhausted":   {err: ErrRetriesExhausted, kind: KindRetriesExhausted},
		"malformed":   {err: ErrMalformedDescriptor, kind: KindMalformedDescriptor},
		"unsupported": {err: ErrUnsupportedPlatform, kind: KindUnsupportedPlatform},
		"canceled":    {err: fmt.Errorf("x: %w", ErrCanceled), kind: KindCanceled},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}
