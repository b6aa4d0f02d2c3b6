package service

import "errors"

var (
	ErrInvalidDataProvided = errors.New("invalid data provided")

	// ErrVaultAccessDenied is returned when a vault exists but belongs to
	// a different user. Handlers map it the same way as a missing vault
	// so vault IDs cannot be probed.
	ErrVaultAccessDenied = errors.New("vault access denied")

	ErrTokenIsExpired = errors.New("token is expired")
)
