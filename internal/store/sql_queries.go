// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const (
	getVaultQuery = `SELECT id, user_id, name, created_at
		FROM vaults
		WHERE id = $1;`

	createVaultQuery = `INSERT INTO vaults (id, user_id, name)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, name, created_at;`

	getItemQuery = `SELECT id, vault_id, type, ciphertext, version, last_modified_by, created_at, updated_at, deleted_at
		FROM vault_items
		WHERE vault_id = $1 AND id = $2;`

	createItemQuery = `INSERT INTO vault_items (id, vault_id, type, ciphertext, version, last_modified_by)
		VALUES ($1, $2, $3, $4, 1, $5)
		RETURNING id, vault_id, type, ciphertext, version, last_modified_by, created_at, updated_at, deleted_at;`

	// updateItemCASQuery is the optimistic compare-and-increment.
	//
	// The CTE returns two nullable columns that let the caller distinguish
	// the three outcomes in a single round-trip:
	//   - target empty                  -> both NULL      -> item not found
	//   - target present, update empty  -> (NULL, version) -> stale caller, version conflict
	//   - both present                  -> (new, old)      -> accepted write
	//
	// The stored version is always bumped from its own current value; the
	// client-supplied version ($5) participates only in the comparison.
	updateItemCASQuery = `WITH target AS (
			SELECT version FROM vault_items
			WHERE vault_id = $1 AND id = $2
		), updated AS (
			UPDATE vault_items
			SET ciphertext = $3,
			    last_modified_by = $4,
			    version = version + 1,
			    updated_at = NOW()
			WHERE vault_id = $1 AND id = $2
			  AND deleted_at IS NULL
			  AND version <= $5
			RETURNING version
		)
		SELECT (SELECT version FROM updated), (SELECT version FROM target);`

	// softDeleteItemCASQuery tombstones an item under the same
	// compare-and-increment rule, and records the tombstone row in the
	// same statement so item and tombstone can never diverge.
	softDeleteItemCASQuery = `WITH target AS (
			SELECT version FROM vault_items
			WHERE vault_id = $1 AND id = $2 AND deleted_at IS NULL
		), updated AS (
			UPDATE vault_items
			SET deleted_at = NOW(),
			    updated_at = NOW(),
			    last_modified_by = $3,
			    version = version + 1
			WHERE vault_id = $1 AND id = $2
			  AND deleted_at IS NULL
			  AND version <= $4
			RETURNING version, deleted_at
		), tombstoned AS (
			INSERT INTO tombstones (item_id, vault_id, version, last_modified_by, deleted_at)
			SELECT $2, $1, updated.version, $3, updated.deleted_at FROM updated
		)
		SELECT (SELECT version FROM updated), (SELECT version FROM target);`

	appendSyncLogQuery = `INSERT INTO sync_log (user_id, device_id, vault_id, item_id, action, version)
		VALUES ($1, $2, $3, $4, $5, $6);`

	listSyncLogSinceQuery = `SELECT id, user_id, device_id, vault_id, item_id, action, version, created_at
		FROM sync_log
		WHERE user_id = $1 AND created_at > $2
		ORDER BY created_at ASC;`

	upsertDeviceQuery = `INSERT INTO devices (fingerprint, user_id)
		VALUES ($1, $2)
		ON CONFLICT (fingerprint) DO UPDATE SET last_seen_at = NOW()
		RETURNING fingerprint, user_id, last_seen_at, created_at;`

	touchDeviceQuery = `UPDATE devices
		SET last_seen_at = NOW()
		WHERE fingerprint = $1;`

	deleteTombstonesOlderThanQuery = `DELETE FROM tombstones
		WHERE deleted_at < $1;`
)

// itemColumns is the canonical column order for scanning vault_items rows.
var itemColumns = []string{
	"id",
	"vault_id",
	"type",
	"ciphertext",
	"version",
	"last_modified_by",
	"created_at",
	"updated_at",
	"deleted_at",
}

// buildListChangedQuery builds the pull-window SELECT over live items:
// everything in the vault modified after since, excluding the requesting
// device's own writes, ordered oldest-first so clients apply updates in the
// order they happened.
//
// A zero since means full resync and drops the updated_at bound entirely.
func buildListChangedQuery(ctx context.Context, vaultID string, since time.Time, excludeDevice string) (string, []any, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	builder := sq.Select(itemColumns...).
		From("vault_items").
		Where(sq.Eq{"vault_id": vaultID}).
		Where("deleted_at IS NULL").
		PlaceholderFormat(sq.Dollar)

	if !since.IsZero() {
		builder = builder.Where(sq.Gt{"updated_at": since})
	}
	if excludeDevice != "" {
		builder = builder.Where(sq.NotEq{"last_modified_by": excludeDevice})
	}

	query, args, err := builder.OrderBy("updated_at ASC").ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return query, args, nil
}

// buildListTombstonesQuery builds the pull-window SELECT over tombstones,
// mirroring buildListChangedQuery for the deleted side of the response.
func buildListTombstonesQuery(ctx context.Context, vaultID string, since time.Time, excludeDevice string) (string, []any, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	builder := sq.Select("item_id", "vault_id", "version", "last_modified_by", "deleted_at").
		From("tombstones").
		Where(sq.Eq{"vault_id": vaultID}).
		PlaceholderFormat(sq.Dollar)

	if !since.IsZero() {
		builder = builder.Where(sq.Gt{"deleted_at": since})
	}
	if excludeDevice != "" {
		builder = builder.Where(sq.NotEq{"last_modified_by": excludeDevice})
	}

	query, args, err := builder.OrderBy("deleted_at ASC").ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return query, args, nil
}
