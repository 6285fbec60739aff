package webrtc

import (
	"errors"
	"fmt"
)

// InvalidStateError indicates an operation was attempted in a signaling
// state that does not permit it.
type InvalidStateError struct{ Err error }

func (e *InvalidStateError) Error() string { return fmt.Sprintf("InvalidStateError: %v", e.Err) }
func (e *InvalidStateError) Unwrap() error { return e.Err }

// InvalidModificationError indicates a negotiation-time invariant
// (an immutable mid, a BUNDLE group, ICE credentials) was violated by a
// remote description.
type InvalidModificationError struct{ Err error }

func (e *InvalidModificationError) Error() string {
	return fmt.Sprintf("InvalidModificationError: %v", e.Err)
}
func (e *InvalidModificationError) Unwrap() error { return e.Err }

// InvalidAccessError indicates a configuration value was rejected at
// construction time.
type InvalidAccessError struct{ Err error }

func (e *InvalidAccessError) Error() string { return fmt.Sprintf("InvalidAccessError: %v", e.Err) }
func (e *InvalidAccessError) Unwrap() error { return e.Err }

// OperationError indicates a negotiation step failed for a reason specific
// to that operation (no matching codec, no matching extension).
type OperationError struct{ Err error }

func (e *OperationError) Error() string { return fmt.Sprintf("OperationError: %v", e.Err) }
func (e *OperationError) Unwrap() error { return e.Err }

// UnknownError indicates a fatal, unrecoverable protocol violation. The
// PeerConnection that produces one of these must close.
type UnknownError struct{ Err error }

func (e *UnknownError) Error() string { return fmt.Sprintf("UnknownError: %v", e.Err) }
func (e *UnknownError) Unwrap() error { return e.Err }

// Configuration errors: fatal at construction.
var (
	ErrInvalidConfiguration = errors.New("invalid_configuration")
	ErrDuplicatePayloadType = errors.New("duplicate_payload_type")
)

// Negotiation errors: surfaced to the caller of the offending API call,
// state left unchanged.
var (
	ErrInvalidState                = errors.New("invalid_state")
	ErrDuplicatedMid                = errors.New("duplicated_mid")
	ErrMissingMid                   = errors.New("missing_mid")
	ErrMissingBundleGroup           = errors.New("missing_bundle_group")
	ErrNonExhaustiveBundleGroup     = errors.New("non_exhaustive_bundle_group")
	ErrMissingICECredentials        = errors.New("missing_ice_credentials")
	ErrMissingICEUfrag              = errors.New("missing_ice_ufrag")
	ErrMissingICEPwd                = errors.New("missing_ice_pwd")
	ErrConflictingICECredentials    = errors.New("conflicting_ice_credentials")
	ErrNoMatchingCodec              = errors.New("no_matching_codec")
	ErrNoMatchingExtension          = errors.New("no_matching_extension")
	ErrMissingFingerprint           = errors.New("missing_fingerprint")
)

// Runtime packet errors: the packet is dropped and a warning logged,
// never fatal.
var (
	ErrNoMatchingMid = errors.New("no_matching_mid")
	ErrLatePacket    = errors.New("late_packet")
)

// Fatal protocol violations: surfaced and the PeerConnection closes.
var (
	ErrSSRCRemappedToOtherMid = errors.New("ssrc already mapped to a different mid")
)

// Connection lifecycle errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
)
