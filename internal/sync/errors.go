package sync

import (
	"errors"
	"fmt"
)

// TransportError marks a remote-unreachable failure. It is retried
// with backoff and never treated as data loss: the outbox and
// watermark stay in a state the next cycle resumes from.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ErrConflictSkipped marks a pulled row withheld because a local
// mutation for the same row is still awaiting delivery. Logged, never
// propagated as a failure.
var ErrConflictSkipped = errors.New("pull row skipped: pending local write")
