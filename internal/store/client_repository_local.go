// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vaultsync/vaultsync/internal/crypto"
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/models"
)

// localStore is the SQLite-backed client vault. Items are encrypted with
// the vault key before they touch disk; the dirty flag tracks which rows
// still have to be pushed to the coordinator.
type localStore struct {
	db       *DB
	crypto   crypto.Provider
	key      []byte
	vaultID  string
	deviceID string
	log      *logger.Logger
}

// NewLocalStore wires a LocalStore onto an open SQLite handle. key is the
// vault key derived from the user's passphrase; deviceID stamps every
// local write as this device's.
func NewLocalStore(db *DB, provider crypto.Provider, key []byte, vaultID, deviceID string, log *logger.Logger) LocalStore {
	return &localStore{
		db:       db,
		crypto:   provider,
		key:      key,
		vaultID:  vaultID,
		deviceID: deviceID,
		log:      log,
	}
}

func (s *localStore) Put(ctx context.Context, itemID, itemType string, plaintext []byte) (models.VaultItem, error) {
	log := s.log.With().Str("func", "localStore.Put").Logger()

	blob, err := s.crypto.Encrypt(plaintext, s.key)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("error encrypting item")
		return models.VaultItem{}, err
	}

	now := time.Now().UTC()

	existing, err := s.Get(ctx, itemID)
	switch {
	case errors.Is(err, ErrItemNotFound):
		_, err = s.db.ExecContext(ctx, insertLocalItem,
			itemID, s.vaultID, itemType, blob, 1, s.deviceID, now)
		if err != nil {
			log.Error().Err(err).Str("item_id", itemID).Msg("error inserting local item")
			return models.VaultItem{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
		return models.VaultItem{
			ID:             itemID,
			VaultID:        s.vaultID,
			Type:           itemType,
			Ciphertext:     blob,
			Version:        1,
			LastModifiedBy: s.deviceID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}, nil
	case err != nil:
		return models.VaultItem{}, err
	}

	// Existing item: the version stays as-is, the coordinator bumps it
	// when the push is accepted.
	_, err = s.db.ExecContext(ctx, updateLocalItem, itemType, blob, now, itemID)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("error updating local item")
		return models.VaultItem{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	existing.Type = itemType
	existing.Ciphertext = blob
	existing.UpdatedAt = now
	return existing, nil
}

func (s *localStore) Get(ctx context.Context, itemID string) (models.VaultItem, error) {
	row := s.db.QueryRowContext(ctx, getLocalItem, itemID)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.VaultItem{}, ErrItemNotFound
		}
		return models.VaultItem{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return item, nil
}

func (s *localStore) GetDecrypted(ctx context.Context, itemID string) ([]byte, error) {
	item, err := s.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	plaintext, err := s.crypto.Decrypt(item.Ciphertext, s.key)
	if err != nil {
		s.log.Error().Err(err).Str("func", "localStore.GetDecrypted").Str("item_id", itemID).Msg("error decrypting item")
		return nil, err
	}

	return plaintext, nil
}

func (s *localStore) List(ctx context.Context) ([]models.VaultItem, error) {
	return s.queryItems(ctx, "localStore.List", listLiveLocalItems)
}

func (s *localStore) ListOwnChanges(ctx context.Context, since time.Time) ([]models.VaultItem, error) {
	return s.queryItems(ctx, "localStore.ListOwnChanges", listDirtyLocalItems, since)
}

func (s *localStore) ListOwnDeletes(ctx context.Context) ([]models.VaultItem, error) {
	return s.queryItems(ctx, "localStore.ListOwnDeletes", listDeletedLocalItems)
}

func (s *localStore) queryItems(ctx context.Context, caller, query string, args ...any) ([]models.VaultItem, error) {
	log := s.log.With().Str("func", caller).Logger()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Msg("error listing local items")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var items []models.VaultItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			log.Error().Err(err).Msg("error scanning local item row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return items, nil
}

// ApplyRemote upserts a coordinator update. The guard in the upsert keeps
// a newer local version from being clobbered by a late-arriving older
// update; such updates are skipped silently.
func (s *localStore) ApplyRemote(ctx context.Context, item models.VaultItem) error {
	log := s.log.With().Str("func", "localStore.ApplyRemote").Logger()

	_, err := s.db.ExecContext(ctx, applyRemoteLocalItem,
		item.ID, item.VaultID, item.Type, item.Ciphertext, item.Version,
		item.LastModifiedBy, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Str("item_id", item.ID).Msg("error applying remote update")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	log.Debug().Str("item_id", item.ID).Int64("version", item.Version).Msg("remote update applied")
	return nil
}

// ApplyTombstone marks the row deleted and adopts the tombstone's version,
// keeping the row so a stale update arriving later cannot resurrect it. A
// tombstone older than the local version is skipped, and a row with
// unpushed local changes is never erased: that case returns
// [ErrDirtyLocalItem] so the caller can treat the delete as a conflict.
func (s *localStore) ApplyTombstone(ctx context.Context, t models.Tombstone) error {
	log := s.log.With().Str("func", "localStore.ApplyTombstone").Logger()

	var (
		version   int64
		dirty     bool
		deletedAt sql.NullTime
	)
	row := s.db.QueryRowContext(ctx, getLocalItemSyncState, t.ItemID)
	err := row.Scan(&version, &dirty, &deletedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// The item never reached this device; nothing to delete.
		return nil
	case err != nil:
		return fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if t.Version < version {
		log.Debug().
			Str("item_id", t.ItemID).
			Int64("local_version", version).
			Int64("tombstone_version", t.Version).
			Msg("skipping stale tombstone")
		return nil
	}

	if dirty && !deletedAt.Valid {
		return fmt.Errorf("%w: %s", ErrDirtyLocalItem, t.ItemID)
	}

	at := t.DeletedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	if _, err = s.db.ExecContext(ctx, applyTombstoneLocalItem, at, t.Version, t.ItemID); err != nil {
		log.Error().Err(err).Str("item_id", t.ItemID).Msg("error applying remote tombstone")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (s *localStore) SoftDelete(ctx context.Context, itemID string) error {
	log := s.log.With().Str("func", "localStore.SoftDelete").Logger()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, softDeleteLocalItem, now, itemID)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("error tombstoning local item")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}

	return nil
}

func (s *localStore) ApplyVersion(ctx context.Context, itemID string, version int64) error {
	log := s.log.With().Str("func", "localStore.ApplyVersion").Logger()

	_, err := s.db.ExecContext(ctx, applyVersionLocalItem, version, itemID)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("error recording accepted version")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (s *localStore) DropItem(ctx context.Context, itemID string) error {
	log := s.log.With().Str("func", "localStore.DropItem").Logger()

	_, err := s.db.ExecContext(ctx, dropLocalItem, itemID)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("error dropping local item")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (s *localStore) Watermark(ctx context.Context) (time.Time, error) {
	var at sql.NullTime
	row := s.db.QueryRowContext(ctx, getWatermark)
	err := row.Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if !at.Valid {
		return time.Time{}, nil
	}
	return at.Time, nil
}

// SetWatermark persists the coordinator-issued sync timestamp. The
// watermark only ever moves forward; an earlier timestamp means local
// sync state and coordinator state have diverged and is refused.
func (s *localStore) SetWatermark(ctx context.Context, at time.Time) error {
	log := s.log.With().Str("func", "localStore.SetWatermark").Logger()

	current, err := s.Watermark(ctx)
	if err != nil {
		return err
	}
	if !current.IsZero() && at.Before(current) {
		log.Error().
			Time("stored", current).
			Time("proposed", at).
			Msg("refusing to move watermark backwards")
		return ErrWatermarkRegression
	}

	if _, err = s.db.ExecContext(ctx, setWatermark, at.UTC()); err != nil {
		log.Error().Err(err).Msg("error persisting watermark")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}
