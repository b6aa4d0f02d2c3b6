// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

// Package store contains the persistence layer of vaultsync: the
// coordinator-side PostgreSQL repositories that own the authoritative
// version counters, and the client-side SQLite local encrypted store.
package store

import (
	"context"
	"time"

	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/repositories_mock.go -package=mock

// ItemRepository owns the authoritative vault-item state on the coordinator.
// Every accepting write increments the stored version by exactly one; the
// client-supplied version is only ever compared against, never stored.
type ItemRepository interface {
	// GetItem returns the stored record (live or tombstoned) or
	// [ErrItemNotFound].
	GetItem(ctx context.Context, vaultID, itemID string) (models.VaultItem, error)

	// CreateItem persists a brand-new item at version 1 and returns the
	// stored record.
	CreateItem(ctx context.Context, vaultID string, item models.PushItem, deviceID string) (models.VaultItem, error)

	// UpdateItemCAS performs the optimistic compare-and-increment: the
	// write is applied only if the stored version is not ahead of
	// item.Version, and the stored version is bumped by exactly one.
	//
	// On success the new authoritative version is returned. On a stale
	// caller ([ErrVersionConflict]) the current stored version is
	// returned and stored state is left unchanged. [ErrItemNotFound] is
	// returned when the item does not exist.
	UpdateItemCAS(ctx context.Context, vaultID string, item models.PushItem, deviceID string) (newVersion, currentVersion int64, err error)

	// SoftDeleteItem tombstones a live item under the same
	// compare-and-increment rule as UpdateItemCAS and records the
	// tombstone row. It never physically removes the item.
	SoftDeleteItem(ctx context.Context, vaultID, itemID string, version int64, deviceID string) (newVersion, currentVersion int64, err error)

	// ListChangedSince returns live items of the vault modified after
	// since, excluding those last modified by excludeDevice, ordered by
	// updated_at ascending. A zero since means "from the beginning".
	ListChangedSince(ctx context.Context, vaultID string, since time.Time, excludeDevice string) ([]models.VaultItem, error)

	// ListTombstonesSince returns tombstones created after since,
	// excluding those produced by excludeDevice.
	ListTombstonesSince(ctx context.Context, vaultID string, since time.Time, excludeDevice string) ([]models.Tombstone, error)

	// DeleteTombstonesOlderThan removes tombstone rows deleted before the
	// cutoff and returns how many were removed. The engine never calls
	// this on its own; retention is an operational decision.
	DeleteTombstonesOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// SyncLogRepository is the append-only audit trail of accepted writes.
type SyncLogRepository interface {
	// Append records one accepted write. Entries are never mutated.
	Append(ctx context.Context, entry models.SyncLogEntry) error

	// ListSince answers "what changed for this user since T".
	ListSince(ctx context.Context, userID int64, since time.Time) ([]models.SyncLogEntry, error)
}

// DeviceRepository tracks registered sync participants.
type DeviceRepository interface {
	// UpsertDevice registers a device fingerprint for the user, or
	// refreshes last_seen_at when it is already known.
	UpsertDevice(ctx context.Context, fingerprint string, userID int64) (models.Device, error)

	// TouchDevice refreshes last_seen_at. Unknown fingerprints are a
	// no-op: pull must not fail because a device skipped registration.
	TouchDevice(ctx context.Context, fingerprint string) error
}

// VaultRepository resolves vault ownership for authorization checks.
type VaultRepository interface {
	// GetVault returns the vault record or [ErrVaultNotFound].
	GetVault(ctx context.Context, vaultID string) (models.Vault, error)

	// CreateVault persists a new vault owned by userID.
	CreateVault(ctx context.Context, vaultID string, userID int64, name string) (models.Vault, error)
}

// Repositories aggregates all coordinator-side repositories for injection
// into the service layer.
type Repositories struct {
	Items   ItemRepository
	SyncLog SyncLogRepository
	Devices DeviceRepository
	Vaults  VaultRepository
}

// NewRepositories wires all repositories onto one database handle.
func NewRepositories(db *DB, log *logger.Logger) *Repositories {
	return &Repositories{
		Items:   NewItemRepository(db, log),
		SyncLog: NewSyncLogRepository(db, log),
		Devices: NewDeviceRepository(db, log),
		Vaults:  NewVaultRepository(db, log),
	}
}
