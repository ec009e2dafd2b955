// Package errors defines the recovery error taxonomy shared across the SDK.
//
// Verification failures (bad index signature, proof hash mismatch, bad delta
// signature, failed decryption) are evidence of tampering or a genuine
// mismatch and are never retried. Transport failures may be retried by the
// caller; this subsystem never retries internally.
package errors

import (
	"fmt"
)

// Kind categorizes recovery errors.
type Kind string

const (
	// KindNoCheckpoints marks the valid empty-result outcome. It is used as
	// an outcome label only and never returned as an error.
	KindNoCheckpoints Kind = "NO_CHECKPOINTS"

	// KindCheckpointFetchFailed indicates a discovery transport or parse failure.
	KindCheckpointFetchFailed Kind = "CHECKPOINT_FETCH_FAILED"

	// KindInvalidIndexSignature indicates the host-served index signature did
	// not verify against the host address.
	KindInvalidIndexSignature Kind = "INVALID_INDEX_SIGNATURE"

	// KindProofHashMismatch indicates a checkpoint's commitment hash did not
	// match the ledger's recorded proof.
	KindProofHashMismatch Kind = "PROOF_HASH_MISMATCH"

	// KindInvalidDeltaStructure indicates a delta payload is missing required
	// fields or violates a structural invariant.
	KindInvalidDeltaStructure Kind = "INVALID_DELTA_STRUCTURE"

	// KindInvalidDeltaSignature indicates a plaintext delta's host signature
	// did not verify.
	KindInvalidDeltaSignature Kind = "INVALID_DELTA_SIGNATURE"

	// KindDeltaFetchFailed indicates the content store could not deliver a
	// delta payload.
	KindDeltaFetchFailed Kind = "DELTA_FETCH_FAILED"

	// KindDecryptionKeyRequired indicates an encrypted delta was encountered
	// with no private key supplied.
	KindDecryptionKeyRequired Kind = "DECRYPTION_KEY_REQUIRED"

	// KindDecryptionFailed indicates authenticated decryption failed
	// (wrong key or tampered ciphertext).
	KindDecryptionFailed Kind = "DECRYPTION_FAILED"

	// KindSessionNotFound indicates no session metadata exists to attempt
	// discovery against.
	KindSessionNotFound Kind = "SESSION_NOT_FOUND"

	// KindRecoveryUnavailable indicates a legacy session with no
	// ledger-anchored deltas and no reachable host.
	KindRecoveryUnavailable Kind = "RECOVERY_UNAVAILABLE"

	// KindMalformedSignature indicates a signature of structurally invalid
	// length was supplied to the verifier.
	KindMalformedSignature Kind = "MALFORMED_SIGNATURE"
)

// NoIndex is the CheckpointIndex value for errors not tied to one checkpoint.
const NoIndex = ^uint64(0)

// RecoveryError is the typed error produced by the recovery subsystem. It
// carries enough detail (checkpoint index, field) to support a dispute
// workflow on the caller side.
type RecoveryError struct {
	Kind            Kind
	Message         string
	CheckpointIndex uint64 // NoIndex when not applicable
	Field           string // offending field, when known
	Cause           error
}

// New creates a RecoveryError not tied to a specific checkpoint.
func New(kind Kind, message string) *RecoveryError {
	return &RecoveryError{
		Kind:            kind,
		Message:         message,
		CheckpointIndex: NoIndex,
	}
}

// Newf creates a RecoveryError with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *RecoveryError {
	return New(kind, fmt.Sprintf(format, args...))
}

// WithCause attaches an underlying cause.
func (e *RecoveryError) WithCause(cause error) *RecoveryError {
	e.Cause = cause
	return e
}

// WithCheckpoint records the checkpoint index the error originated from.
func (e *RecoveryError) WithCheckpoint(index uint64) *RecoveryError {
	e.CheckpointIndex = index
	return e
}

// WithField records the offending field name.
func (e *RecoveryError) WithField(field string) *RecoveryError {
	e.Field = field
	return e
}

// Error implements the error interface.
func (e *RecoveryError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.CheckpointIndex != NoIndex {
		msg = fmt.Sprintf("%s (checkpoint %d)", msg, e.CheckpointIndex)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %q)", msg, e.Field)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RecoveryError) Unwrap() error {
	return e.Cause
}

// IsVerificationFailure reports whether the error indicates tampering or a
// genuine cryptographic mismatch. These are terminal and must never be
// retried.
func (e *RecoveryError) IsVerificationFailure() bool {
	switch e.Kind {
	case KindInvalidIndexSignature, KindProofHashMismatch,
		KindInvalidDeltaSignature, KindDecryptionFailed:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether the caller may reasonably retry the operation.
// Only transport failures qualify.
func (e *RecoveryError) IsRetryable() bool {
	switch e.Kind {
	case KindCheckpointFetchFailed, KindDeltaFetchFailed:
		return true
	default:
		return false
	}
}
