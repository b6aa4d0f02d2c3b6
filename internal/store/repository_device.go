// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package store

import (
	"context"
	"fmt"

	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/models"
)

type deviceRepository struct {
	db  *DB
	log *logger.Logger
}

func NewDeviceRepository(db *DB, log *logger.Logger) *deviceRepository {
	return &deviceRepository{db: db, log: log}
}

// UpsertDevice registers a device fingerprint for a user, or refreshes
// last_seen_at when the fingerprint is already known.
func (r *deviceRepository) UpsertDevice(ctx context.Context, fingerprint string, userID int64) (models.Device, error) {
	log := r.log.With().Str("func", "deviceRepository.UpsertDevice").Logger()

	var device models.Device
	row := r.db.QueryRowContext(ctx, upsertDeviceQuery, fingerprint, userID)
	err := row.Scan(&device.Fingerprint, &device.UserID, &device.LastSeenAt, &device.CreatedAt)
	if err != nil {
		log.Error().Err(err).Str("fingerprint", fingerprint).Msg("error upserting device")
		return models.Device{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return device, nil
}

// TouchDevice refreshes last_seen_at for a known fingerprint. Unknown
// fingerprints are ignored.
func (r *deviceRepository) TouchDevice(ctx context.Context, fingerprint string) error {
	log := r.log.With().Str("func", "deviceRepository.TouchDevice").Logger()

	_, err := r.db.ExecContext(ctx, touchDeviceQuery, fingerprint)
	if err != nil {
		log.Error().Err(err).Str("fingerprint", fingerprint).Msg("error touching device")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}
