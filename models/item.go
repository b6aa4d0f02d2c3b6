// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package models

import "time"

// VaultItem represents a single encrypted secret inside a vault.
// The synchronization engine never inspects the plaintext: Ciphertext is an
// opaque blob produced by the crypto provider, and the coordinator only ever
// stores and compares ciphertext and version numbers.
type VaultItem struct {
	// ID is the stable identifier of the item. It is assigned by the
	// creating client (UUID) and never changes afterwards.
	ID string `json:"id"`

	// VaultID identifies the vault this item belongs to.
	VaultID string `json:"vault_id"`

	// Type is a discriminator (login, note, card, ...) that is opaque to
	// the sync engine. It travels alongside the ciphertext so clients can
	// decide how to render the decrypted payload.
	Type string `json:"type"`

	// Ciphertext is the base64-encoded encrypted payload
	// (nonce ‖ ciphertext ‖ auth tag). Opaque to the coordinator.
	Ciphertext string `json:"encrypted_data"`

	// Version is a monotonically increasing counter starting at 1.
	// The coordinator is the single owner of this counter: every accepted
	// write increments it by exactly one, and it is compared, never merged.
	Version int64 `json:"version"`

	// LastModifiedBy is the fingerprint of the device that produced the
	// current revision. Used for pull-side loop prevention only.
	LastModifiedBy string `json:"last_modified_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// DeletedAt is the soft-delete marker. A non-nil value means the item
	// is a tombstoned record that must not appear in pull updates.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the item carries a soft-delete marker.
func (v *VaultItem) Deleted() bool {
	return v.DeletedAt != nil
}

// Tombstone records that an item was deleted, so the deletion can propagate
// to devices that still hold a live copy. Tombstones live in their own table,
// distinct from live items, and are never mutated after creation.
type Tombstone struct {
	ItemID         string    `json:"id"`
	VaultID        string    `json:"vault_id"`
	Version        int64     `json:"version"`
	LastModifiedBy string    `json:"last_modified_by"`
	DeletedAt      time.Time `json:"deleted_at"`
}
