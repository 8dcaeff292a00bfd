package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, the file store and ledger
// adapters return these (optionally wrapped) so coordinators can translate them
// into domain errors.
//
//   - ErrNotFound: entity does not exist in the store or on the ledger
//   - ErrAlreadyUsed: unique key already taken (insert-if-absent lost the race)
//   - ErrInvalidState: entity in wrong state for requested operation
//   - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
