package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: a uniqueness rule was violated (e.g. second active certificate)
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrAlreadyClaimed: reminder already claimed by another sweep
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidState   = errors.New("invalid state")
	ErrAlreadyClaimed = errors.New("already claimed")
	ErrUnavailable    = errors.New("unavailable")
)
