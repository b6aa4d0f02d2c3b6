// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/models"
)

type vaultRepository struct {
	db  *DB
	log *logger.Logger
}

func NewVaultRepository(db *DB, log *logger.Logger) *vaultRepository {
	return &vaultRepository{db: db, log: log}
}

func (r *vaultRepository) GetVault(ctx context.Context, vaultID string) (models.Vault, error) {
	log := r.log.With().Str("func", "vaultRepository.GetVault").Logger()

	var vault models.Vault
	row := r.db.QueryRowContext(ctx, getVaultQuery, vaultID)
	err := row.Scan(&vault.ID, &vault.UserID, &vault.Name, &vault.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Vault{}, ErrVaultNotFound
		}
		log.Error().Err(err).Str("vault_id", vaultID).Msg("error scanning vault row")
		return models.Vault{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return vault, nil
}

func (r *vaultRepository) CreateVault(ctx context.Context, vaultID string, userID int64, name string) (models.Vault, error) {
	log := r.log.With().Str("func", "vaultRepository.CreateVault").Logger()

	var created models.Vault
	row := r.db.QueryRowContext(ctx, createVaultQuery, vaultID, userID, name)
	err := row.Scan(&created.ID, &created.UserID, &created.Name, &created.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Vault{}, ErrVaultAlreadyExists
		}
		log.Error().Err(err).Str("vault_id", vaultID).Msg("error creating vault")
		return models.Vault{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	log.Info().Str("vault_id", created.ID).Int64("user_id", created.UserID).Msg("vault created")
	return created, nil
}
