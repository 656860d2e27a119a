package registry

import "errors"

// Errors returned by registry operations. None of them leave partial state behind.
var (
	ErrNotAuthorized     = errors.New("caller is not the registry authority")
	ErrAlreadyRegistered = errors.New("entity already registered")
	ErrNotFound          = errors.New("entity not registered")
)

// Numeric error codes reported to the execution environment.
const (
	CodeAlreadyRegistered uint32 = 100
	CodeNotAuthorized     uint32 = 403
	CodeNotFound          uint32 = 404
)

// Code maps a registry error (possibly wrapped) to its numeric code.
// It returns 0 for nil and for errors the registry does not produce.
func Code(err error) uint32 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotAuthorized):
		return CodeNotAuthorized
	case errors.Is(err, ErrAlreadyRegistered):
		return CodeAlreadyRegistered
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return 0
	}
}
