/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrGuardFailed    = errors.New("guard failed")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Code returns the wire error code for err, or "Internal" if err does not
// wrap one of the sentinel errors.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrGuardFailed):
		return "GuardFailed"
	case errors.Is(err, ErrInvalidPayload):
		return "InvalidPayload"
	default:
		return "Internal"
	}
}

// ErrStopped is returned by engine operations once Run has returned.
var ErrStopped = errors.New("engine stopped")
