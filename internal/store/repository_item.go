// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/models"
)

// itemRepository is the coordinator-side store for encrypted vault items.
// It never inspects ciphertext; versioning and timestamps are the only
// fields it reasons about.
type itemRepository struct {
	db  *DB
	log *logger.Logger
}

func NewItemRepository(db *DB, log *logger.Logger) *itemRepository {
	return &itemRepository{db: db, log: log}
}

func (r *itemRepository) GetItem(ctx context.Context, vaultID, itemID string) (models.VaultItem, error) {
	log := r.log.With().Str("func", "itemRepository.GetItem").Logger()

	row := r.db.QueryRowContext(ctx, getItemQuery, vaultID, itemID)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.VaultItem{}, ErrItemNotFound
		}
		log.Error().Err(err).Str("item_id", itemID).Msg("error scanning item row")
		return models.VaultItem{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return item, nil
}

func (r *itemRepository) CreateItem(ctx context.Context, vaultID string, item models.PushItem, deviceID string) (models.VaultItem, error) {
	log := r.log.With().Str("func", "itemRepository.CreateItem").Logger()

	row := r.db.QueryRowContext(ctx, createItemQuery,
		item.ID, vaultID, item.Type, item.Ciphertext, deviceID)

	created, err := scanItem(row)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a create race with another device. The caller retries
			// through the compare-and-increment path.
			return models.VaultItem{}, ErrVersionConflict
		}
		log.Error().Err(err).Str("item_id", item.ID).Msg("error creating item")
		return models.VaultItem{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	log.Debug().Str("item_id", created.ID).Str("vault_id", vaultID).Msg("item created")
	return created, nil
}

// UpdateItemCAS applies one client update under optimistic concurrency.
// On success it returns the new stored version. On a stale client it
// returns ErrVersionConflict together with the current stored version so
// the caller can report it back. A missing item maps to ErrItemNotFound.
func (r *itemRepository) UpdateItemCAS(ctx context.Context, vaultID string, item models.PushItem, deviceID string) (int64, int64, error) {
	log := r.log.With().Str("func", "itemRepository.UpdateItemCAS").Logger()

	row := r.db.QueryRowContext(ctx, updateItemCASQuery,
		vaultID, item.ID, item.Ciphertext, deviceID, item.Version)

	var updatedVersion, currentVersion sql.NullInt64
	if err := row.Scan(&updatedVersion, &currentVersion); err != nil {
		log.Error().Err(err).Str("item_id", item.ID).Msg("error executing compare-and-increment")
		return 0, 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	switch {
	case !currentVersion.Valid:
		return 0, 0, ErrItemNotFound
	case !updatedVersion.Valid:
		log.Debug().
			Str("item_id", item.ID).
			Int64("client_version", item.Version).
			Int64("server_version", currentVersion.Int64).
			Msg("version conflict")
		return 0, currentVersion.Int64, ErrVersionConflict
	}

	return updatedVersion.Int64, currentVersion.Int64, nil
}

// SoftDeleteItem tombstones an item under the same compare-and-increment
// rule as UpdateItemCAS. The tombstone row is written in the same
// statement as the update.
func (r *itemRepository) SoftDeleteItem(ctx context.Context, vaultID, itemID string, version int64, deviceID string) (int64, int64, error) {
	log := r.log.With().Str("func", "itemRepository.SoftDeleteItem").Logger()

	row := r.db.QueryRowContext(ctx, softDeleteItemCASQuery,
		vaultID, itemID, deviceID, version)

	var updatedVersion, currentVersion sql.NullInt64
	if err := row.Scan(&updatedVersion, &currentVersion); err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("error executing soft delete")
		return 0, 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	switch {
	case !currentVersion.Valid:
		return 0, 0, ErrItemNotFound
	case !updatedVersion.Valid:
		return 0, currentVersion.Int64, ErrVersionConflict
	}

	log.Debug().Str("item_id", itemID).Int64("version", updatedVersion.Int64).Msg("item tombstoned")
	return updatedVersion.Int64, currentVersion.Int64, nil
}

func (r *itemRepository) ListChangedSince(ctx context.Context, vaultID string, since time.Time, excludeDevice string) ([]models.VaultItem, error) {
	log := r.log.With().Str("func", "itemRepository.ListChangedSince").Logger()

	query, args, err := buildListChangedQuery(ctx, vaultID, since, excludeDevice)
	if err != nil {
		log.Error().Err(err).Msg("error building pull updates query")
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Str("vault_id", vaultID).Msg("error listing changed items")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var items []models.VaultItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			log.Error().Err(err).Msg("error scanning changed item row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return items, nil
}

func (r *itemRepository) ListTombstonesSince(ctx context.Context, vaultID string, since time.Time, excludeDevice string) ([]models.Tombstone, error) {
	log := r.log.With().Str("func", "itemRepository.ListTombstonesSince").Logger()

	query, args, err := buildListTombstonesQuery(ctx, vaultID, since, excludeDevice)
	if err != nil {
		log.Error().Err(err).Msg("error building pull tombstones query")
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Str("vault_id", vaultID).Msg("error listing tombstones")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var tombstones []models.Tombstone
	for rows.Next() {
		var t models.Tombstone
		if err := rows.Scan(&t.ItemID, &t.VaultID, &t.Version, &t.LastModifiedBy, &t.DeletedAt); err != nil {
			log.Error().Err(err).Msg("error scanning tombstone row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		tombstones = append(tombstones, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return tombstones, nil
}

// DeleteTombstonesOlderThan implements [ItemRepository].
func (r *itemRepository) DeleteTombstonesOlderThan(ctx context.Context, before time.Time) (int64, error) {
	log := r.log.With().Str("func", "itemRepository.DeleteTombstonesOlderThan").Logger()

	res, err := r.db.ExecContext(ctx, deleteTombstonesOlderThanQuery, before)
	if err != nil {
		log.Error().Err(err).Msg("error deleting expired tombstones")
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return removed, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (models.VaultItem, error) {
	var item models.VaultItem
	err := row.Scan(
		&item.ID,
		&item.VaultID,
		&item.Type,
		&item.Ciphertext,
		&item.Version,
		&item.LastModifiedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.DeletedAt,
	)
	if err != nil {
		return models.VaultItem{}, err
	}
	return item, nil
}
