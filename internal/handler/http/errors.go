// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package http

import "errors"

// Errors produced while extracting the bearer token from the
// Authorization header. The auth middleware answers 401 for each of them;
// the distinct values exist so tests and logs can tell the cases apart.
var (
	// ErrEmptyAuthorizationHeader means the request carried no
	// Authorization header at all.
	ErrEmptyAuthorizationHeader = errors.New("authorization header is missing")

	// ErrInvalidAuthorizationHeader means the header could not be split
	// into a scheme and a token.
	ErrInvalidAuthorizationHeader = errors.New("malformed authorization header")

	// ErrEmptyToken means the scheme was present but the token value
	// was blank.
	ErrEmptyToken = errors.New("authorization header carries no token")
)
