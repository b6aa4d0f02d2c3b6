// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/models"
)

// syncLogRepository is the append-only audit log of accepted sync
// operations. Entries are never updated or removed.
type syncLogRepository struct {
	db  *DB
	log *logger.Logger
}

func NewSyncLogRepository(db *DB, log *logger.Logger) *syncLogRepository {
	return &syncLogRepository{db: db, log: log}
}

func (r *syncLogRepository) Append(ctx context.Context, entry models.SyncLogEntry) error {
	log := r.log.With().Str("func", "syncLogRepository.Append").Logger()

	_, err := r.db.ExecContext(ctx, appendSyncLogQuery,
		entry.UserID, entry.DeviceID, entry.VaultID, entry.ItemID, entry.Action, entry.Version)
	if err != nil {
		log.Error().Err(err).Str("item_id", entry.ItemID).Msg("error appending sync log entry")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (r *syncLogRepository) ListSince(ctx context.Context, userID int64, since time.Time) ([]models.SyncLogEntry, error) {
	log := r.log.With().Str("func", "syncLogRepository.ListSince").Logger()

	rows, err := r.db.QueryContext(ctx, listSyncLogSinceQuery, userID, since)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("error listing sync log")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var entries []models.SyncLogEntry
	for rows.Next() {
		var e models.SyncLogEntry
		err := rows.Scan(&e.ID, &e.UserID, &e.DeviceID, &e.VaultID, &e.ItemID, &e.Action, &e.Version, &e.CreatedAt)
		if err != nil {
			log.Error().Err(err).Msg("error scanning sync log row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return entries, nil
}
