package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain assignable to target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// AsRecoveryError extracts a *RecoveryError from err's chain, if present.
func AsRecoveryError(err error) (*RecoveryError, bool) {
	var recErr *RecoveryError
	if errors.As(err, &recErr) {
		return recErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err when it is (or wraps) a RecoveryError, or
// an empty Kind otherwise.
func KindOf(err error) Kind {
	if recErr, ok := AsRecoveryError(err); ok {
		return recErr.Kind
	}
	return ""
}

// IsKind reports whether err is (or wraps) a RecoveryError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether the caller may retry after err. Non-recovery
// errors are treated as non-retryable.
func IsRetryable(err error) bool {
	if recErr, ok := AsRecoveryError(err); ok {
		return recErr.IsRetryable()
	}
	return false
}
