package service

import (
	"errors"

	"trustreg/contracts/registry"
	dErrors "trustreg/pkg/domain-errors"
	"trustreg/pkg/platform/sentinel"
)

// wrapRegistryErr translates registry and journal failures into coded domain
// errors. The registry sentinel stays in the chain for errors.Is and Code.
func wrapRegistryErr(err error) error {
	switch {
	case errors.Is(err, registry.ErrNotAuthorized):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "caller is not the registry authority")
	case errors.Is(err, registry.ErrAlreadyRegistered):
		return dErrors.Wrap(err, dErrors.CodeConflict, "entity already registered")
	case errors.Is(err, registry.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "entity not registered")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "journal unavailable")
	case errors.Is(err, sentinel.ErrConflict):
		// The journal moved past the live height; the sequencer has caught up
		// and the call can be retried.
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "journal moved ahead, retry")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record registry mutation")
	}
}

// denialReason labels a rejected call for metrics and audit. Empty means the
// failure was not a registry rejection.
func denialReason(err error) string {
	switch {
	case errors.Is(err, registry.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, registry.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, registry.ErrNotFound):
		return "not_found"
	default:
		return ""
	}
}
