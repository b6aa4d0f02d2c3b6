// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package models

// Resolution is the decision produced for a detected version conflict.
type Resolution string

const (
	// ResolutionUseLocal re-issues the local copy as a forced update that
	// bumps the authoritative version again.
	ResolutionUseLocal Resolution = "use-local"

	// ResolutionUseServer discards the local edit and applies the server
	// copy through the same path as a pulled update.
	ResolutionUseServer Resolution = "use-server"

	// ResolutionNeedsHuman means neither copy may be silently picked.
	// This is the default outcome of every version mismatch: silently
	// choosing a winner risks silent credential loss.
	ResolutionNeedsHuman Resolution = "needs-human"
)

// Conflict is the transient result of a rejected push. It carries both full
// records so a human (or an external policy) can decide without another
// round-trip. Conflicts are emitted to the client's conflict sink and never
// resolved automatically.
type Conflict struct {
	ItemID        string     `json:"item_id"`
	VaultID       string     `json:"vault_id"`
	ClientVersion int64      `json:"client_version"`
	ServerVersion int64      `json:"server_version"`
	LocalItem     *VaultItem `json:"local_item,omitempty"`
	ServerItem    *VaultItem `json:"server_item,omitempty"`
}
