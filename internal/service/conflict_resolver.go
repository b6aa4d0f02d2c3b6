// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package service

import "github.com/vaultsync/vaultsync/models"

// defaultConflictResolver never auto-resolves: both sides of a conflict
// are encrypted blobs, so the engine has no basis for picking a winner.
// Every conflict is handed to the user.
type defaultConflictResolver struct{}

// NewConflictResolver constructs the default resolver. Because Resolve is
// a stateless decision on the conflict value alone, no dependencies are
// needed.
func NewConflictResolver() ConflictResolver {
	return defaultConflictResolver{}
}

func (defaultConflictResolver) Resolve(models.Conflict) models.Resolution {
	return models.ResolutionNeedsHuman
}
