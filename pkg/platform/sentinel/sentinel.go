package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Journals, stores and clients
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
//   - ErrNotFound: entry does not exist in the backing store
//   - ErrConflict: write raced with another writer (height already taken)
//   - ErrTampered: stored data failed an integrity check
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrTampered    = errors.New("integrity check failed")
	ErrUnavailable = errors.New("unavailable")
)
