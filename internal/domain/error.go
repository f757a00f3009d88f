package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrValidation      = errors.New("invalid input")
	ErrStorage         = errors.New("record store unavailable")
	ErrVersionConflict = errors.New("record store version conflict")
	ErrUpstream        = errors.New("bank feed unavailable")

	// Issuance
	ErrTierNotFound = errors.New("amount does not match any tier")
	ErrOutOfStock   = errors.New("no stock available")

	// Redemption
	ErrCredentialNotFound  = errors.New("credential not found")
	ErrCredentialInactive  = errors.New("credential is inactive")
	ErrCredentialExpired   = errors.New("credential has expired")
	ErrCredentialExhausted = errors.New("credential has reached its usage limit")
)

// ErrorCode returns the stable, client-facing code for a domain error.
// Unknown errors map to INTERNAL_ERROR.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrTierNotFound):
		return "TIER_NOT_FOUND"
	case errors.Is(err, ErrOutOfStock):
		return "OUT_OF_STOCK"
	case errors.Is(err, ErrCredentialNotFound):
		return "KEY_NOT_FOUND"
	case errors.Is(err, ErrCredentialInactive):
		return "KEY_INACTIVE"
	case errors.Is(err, ErrCredentialExpired):
		return "KEY_EXPIRED"
	case errors.Is(err, ErrCredentialExhausted):
		return "KEY_MAX_USES_REACHED"
	case errors.Is(err, ErrUpstream):
		return "UPSTREAM_ERROR"
	case errors.Is(err, ErrStorage), errors.Is(err, ErrVersionConflict):
		return "STORAGE_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}
