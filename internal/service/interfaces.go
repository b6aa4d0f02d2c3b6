// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package service

import (
	"context"
	"time"

	"github.com/vaultsync/vaultsync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/services_mock.go -package=mock

// SyncService is the coordinator's sync engine: it owns the pull window,
// the push compare-and-increment loop and the audit log.
type SyncService interface {
	// Pull returns everything that changed in the vault after the
	// client's watermark, excluding the requesting device's own writes,
	// together with the coordinator's current clock.
	Pull(ctx context.Context, userID int64, req models.PullRequest) (models.PullResponse, error)

	// Push applies a batch of client changes. Items succeed and fail
	// independently; the batch itself only errors on authorization or
	// validation failures.
	Push(ctx context.Context, userID int64, req models.PushRequest) (models.PushResponse, error)

	// UpdateItem applies one direct item write under the optimistic
	// version check, outside a sync cycle.
	UpdateItem(ctx context.Context, userID int64, itemID string, req models.UpdateItemRequest) (models.UpdateItemResponse, error)

	// DeleteItem tombstones one item under the optimistic version check.
	DeleteItem(ctx context.Context, userID int64, vaultID, itemID string, version int64, deviceID string) (models.UpdateItemResponse, error)

	// History returns the user's audit trail of accepted writes since T.
	History(ctx context.Context, userID int64, since time.Time) ([]models.SyncLogEntry, error)
}

// AuthService resolves tokens and manages sync participants.
type AuthService interface {
	// ParseToken validates the JWT and returns the token with its
	// claims, or an error for invalid, expired or foreign tokens.
	ParseToken(ctx context.Context, tokenString string) (models.Token, error)

	// RegisterDevice records a device fingerprint for the user.
	RegisterDevice(ctx context.Context, userID int64, fingerprint string) (models.Device, error)

	// CreateVault provisions a vault owned by the user.
	CreateVault(ctx context.Context, userID int64, vaultID, name string) (models.Vault, error)
}

// Notifier fans an accepted item write out to the user's other connected
// devices. The realtime hub implements it; a no-op implementation keeps
// the sync service testable without sockets.
type Notifier interface {
	NotifyItemUpdated(userID int64, excludeDevice string, item models.VaultItem)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) NotifyItemUpdated(int64, string, models.VaultItem) {}
