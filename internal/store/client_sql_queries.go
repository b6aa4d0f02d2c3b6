// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package store

const (
	createLocalSchema = `
		CREATE TABLE IF NOT EXISTS local_items (
			id               TEXT PRIMARY KEY,
			vault_id         TEXT NOT NULL,
			type             TEXT NOT NULL,
			ciphertext       TEXT NOT NULL,
			version          INTEGER NOT NULL DEFAULT 1,
			last_modified_by TEXT NOT NULL,
			dirty            INTEGER NOT NULL DEFAULT 0,
			created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deleted_at       TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS sync_state (
			id           INTEGER PRIMARY KEY CHECK (id = 1),
			last_sync_at TIMESTAMP
		);`

	getLocalItem = `
		SELECT id, vault_id, type, ciphertext, version, last_modified_by, created_at, updated_at, deleted_at
		FROM local_items
		WHERE id = $1;`

	insertLocalItem = `
		INSERT INTO local_items (id, vault_id, type, ciphertext, version, last_modified_by, dirty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7);`

	updateLocalItem = `
		UPDATE local_items SET
			type       = $1,
			ciphertext = $2,
			dirty      = 1,
			updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL;`

	listLiveLocalItems = `
		SELECT id, vault_id, type, ciphertext, version, last_modified_by, created_at, updated_at, deleted_at
		FROM local_items
		WHERE deleted_at IS NULL
		ORDER BY updated_at ASC;`

	listDirtyLocalItems = `
		SELECT id, vault_id, type, ciphertext, version, last_modified_by, created_at, updated_at, deleted_at
		FROM local_items
		WHERE dirty = 1 AND deleted_at IS NULL AND updated_at > $1
		ORDER BY updated_at ASC;`

	listDeletedLocalItems = `
		SELECT id, vault_id, type, ciphertext, version, last_modified_by, created_at, updated_at, deleted_at
		FROM local_items
		WHERE dirty = 1 AND deleted_at IS NOT NULL
		ORDER BY updated_at ASC;`

	applyRemoteLocalItem = `
		INSERT INTO local_items (id, vault_id, type, ciphertext, version, last_modified_by, dirty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			type       = excluded.type,
			ciphertext = excluded.ciphertext,
			version    = excluded.version,
			last_modified_by = excluded.last_modified_by,
			dirty      = 0,
			updated_at = excluded.updated_at,
			deleted_at = NULL
		WHERE excluded.version >= local_items.version;`

	softDeleteLocalItem = `
		UPDATE local_items SET
			deleted_at = $1,
			updated_at = $1,
			dirty      = 1
		WHERE id = $2 AND deleted_at IS NULL;`

	getLocalItemSyncState = `
		SELECT version, dirty, deleted_at
		FROM local_items
		WHERE id = $1;`

	applyTombstoneLocalItem = `
		UPDATE local_items SET
			deleted_at = $1,
			updated_at = $1,
			version    = $2,
			dirty      = 0
		WHERE id = $3 AND version <= $2;`

	applyVersionLocalItem = `
		UPDATE local_items SET
			version = $1,
			dirty   = 0
		WHERE id = $2;`

	dropLocalItem = `
		DELETE FROM local_items
		WHERE id = $1;`

	getWatermark = `
		SELECT last_sync_at
		FROM sync_state
		WHERE id = 1;`

	setWatermark = `
		INSERT INTO sync_state (id, last_sync_at)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_sync_at = excluded.last_sync_at;`
)
