package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: unique/duplicate constraint hit (e.g. second active session)
// - ErrExpired: grant/session/user access window has passed
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrImmutable: attempt to change a record the system treats as frozen
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrImmutable    = errors.New("immutable")
	ErrUnavailable  = errors.New("unavailable")
)
