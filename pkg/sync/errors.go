package sync

import "errors"

// TransientError marks a failure worth retrying: the target context was
// unreachable or temporarily unavailable. Retried with bounded exponential
// backoff, never surfaced to the end user.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient sync error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientError.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// PermanentError marks a failure that will never succeed: a malformed
// payload or a referential-integrity failure such as a deleted project. The
// event moves straight to FAILED and is surfaced for operator review.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent sync error: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
