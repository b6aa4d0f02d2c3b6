// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/internal/store"
	"github.com/vaultsync/vaultsync/models"
)

// syncService is the concrete implementation of SyncService. It treats
// ciphertext as opaque: every decision is made on versions and timestamps
// alone.
type syncService struct {
	items    store.ItemRepository
	syncLog  store.SyncLogRepository
	devices  store.DeviceRepository
	vaults   store.VaultRepository
	notifier Notifier

	// now is the coordinator clock, swappable in tests.
	now func() time.Time

	logger *logger.Logger
}

func NewSyncService(repos *store.Repositories, notifier Notifier, logger *logger.Logger) SyncService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &syncService{
		items:    repos.Items,
		syncLog:  repos.SyncLog,
		devices:  repos.Devices,
		vaults:   repos.Vaults,
		notifier: notifier,
		now:      time.Now,
		logger:   logger,
	}
}

// authorizeVault resolves the vault and checks ownership. A vault owned by
// someone else returns ErrVaultAccessDenied.
func (s *syncService) authorizeVault(ctx context.Context, userID int64, vaultID string) (models.Vault, error) {
	vault, err := s.vaults.GetVault(ctx, vaultID)
	if err != nil {
		return models.Vault{}, err
	}
	if vault.UserID != userID {
		return models.Vault{}, ErrVaultAccessDenied
	}
	return vault, nil
}

// Pull implements the download half of a sync cycle.
//
// The response timestamp is taken from the coordinator clock before the
// window queries run, so a write racing the pull lands after the returned
// watermark and is picked up by the client's next cycle instead of being
// lost in the gap.
func (s *syncService) Pull(ctx context.Context, userID int64, req models.PullRequest) (models.PullResponse, error) {
	log := s.logger.With().Str("func", "syncService.Pull").Logger()

	if req.VaultID == "" {
		return models.PullResponse{}, ErrInvalidDataProvided
	}
	if _, err := s.authorizeVault(ctx, userID, req.VaultID); err != nil {
		return models.PullResponse{}, err
	}

	stamp := s.now().UTC()
	since := models.MillisToTime(req.LastSyncTimestamp)

	updates, err := s.items.ListChangedSince(ctx, req.VaultID, since, req.DeviceID)
	if err != nil {
		log.Err(err).Str("vault_id", req.VaultID).Msg("error listing changed items")
		return models.PullResponse{}, fmt.Errorf("error listing changed items: %w", err)
	}

	deleted, err := s.items.ListTombstonesSince(ctx, req.VaultID, since, req.DeviceID)
	if err != nil {
		log.Err(err).Str("vault_id", req.VaultID).Msg("error listing tombstones")
		return models.PullResponse{}, fmt.Errorf("error listing tombstones: %w", err)
	}

	// Best effort: pull never fails because of device bookkeeping.
	if req.DeviceID != "" {
		if err := s.devices.TouchDevice(ctx, req.DeviceID); err != nil {
			log.Warn().Err(err).Str("device_id", req.DeviceID).Msg("error touching device")
		}
	}

	log.Debug().
		Str("vault_id", req.VaultID).
		Int("updates", len(updates)).
		Int("deleted", len(deleted)).
		Msg("pull window computed")

	return models.PullResponse{
		Updates:   updates,
		Deleted:   deleted,
		Timestamp: models.TimeToMillis(stamp),
	}, nil
}

// Push implements the upload half of a sync cycle. Items are processed in
// order and fail independently: a conflict or storage error on one item
// never aborts the rest of the batch.
func (s *syncService) Push(ctx context.Context, userID int64, req models.PushRequest) (models.PushResponse, error) {
	log := s.logger.With().Str("func", "syncService.Push").Logger()

	if req.VaultID == "" || len(req.Items) == 0 {
		return models.PushResponse{}, ErrInvalidDataProvided
	}
	if _, err := s.authorizeVault(ctx, userID, req.VaultID); err != nil {
		return models.PushResponse{}, err
	}

	results := make([]models.PushItemResult, 0, len(req.Items))
	for _, item := range req.Items {
		results = append(results, s.pushOne(ctx, userID, req.VaultID, req.DeviceID, item))
	}

	log.Debug().Str("vault_id", req.VaultID).Int("items", len(results)).Msg("push batch processed")
	return models.PushResponse{Results: results}, nil
}

func (s *syncService) pushOne(ctx context.Context, userID int64, vaultID, deviceID string, item models.PushItem) models.PushItemResult {
	log := s.logger.With().Str("func", "syncService.pushOne").Str("item_id", item.ID).Logger()

	newVersion, serverVersion, err := s.items.UpdateItemCAS(ctx, vaultID, item, deviceID)
	action := models.SyncActionUpdate

	if errors.Is(err, store.ErrItemNotFound) {
		created, createErr := s.items.CreateItem(ctx, vaultID, item, deviceID)
		if errors.Is(createErr, store.ErrVersionConflict) {
			// Lost a create race: another device inserted the item between
			// the two statements. Report the winner's version.
			return s.conflictResult(ctx, vaultID, item)
		}
		if createErr != nil {
			log.Err(createErr).Msg("error creating item")
			return models.PushItemResult{ID: item.ID, Status: models.PushStatusError, Error: createErr.Error()}
		}
		newVersion = created.Version
		action = models.SyncActionCreate
		err = nil
	}

	switch {
	case errors.Is(err, store.ErrVersionConflict):
		return models.PushItemResult{
			ID:            item.ID,
			Status:        models.PushStatusConflict,
			ServerVersion: serverVersion,
			ClientVersion: item.Version,
		}
	case err != nil:
		log.Err(err).Msg("error applying pushed item")
		return models.PushItemResult{ID: item.ID, Status: models.PushStatusError, Error: err.Error()}
	}

	s.recordAndNotify(ctx, userID, deviceID, vaultID, item.ID, action, newVersion)

	return models.PushItemResult{ID: item.ID, Status: models.PushStatusSuccess, Version: newVersion}
}

// conflictResult builds the conflict answer for a lost create race, using
// the stored item's version when it can still be read.
func (s *syncService) conflictResult(ctx context.Context, vaultID string, item models.PushItem) models.PushItemResult {
	result := models.PushItemResult{
		ID:            item.ID,
		Status:        models.PushStatusConflict,
		ClientVersion: item.Version,
	}
	if stored, err := s.items.GetItem(ctx, vaultID, item.ID); err == nil {
		result.ServerVersion = stored.Version
	}
	return result
}

// recordAndNotify appends the audit entry and fans the accepted write out
// to the user's other devices. Both are best effort: the write itself has
// already been committed.
func (s *syncService) recordAndNotify(ctx context.Context, userID int64, deviceID, vaultID, itemID, action string, version int64) {
	log := s.logger.With().Str("func", "syncService.recordAndNotify").Logger()

	entry := models.SyncLogEntry{
		UserID:   userID,
		DeviceID: deviceID,
		VaultID:  vaultID,
		ItemID:   itemID,
		Action:   action,
		Version:  version,
	}
	if err := s.syncLog.Append(ctx, entry); err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("error appending sync log entry")
	}

	stored, err := s.items.GetItem(ctx, vaultID, itemID)
	if err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("error reading item for notification")
		return
	}
	s.notifier.NotifyItemUpdated(userID, deviceID, stored)
}

// UpdateItem is the single-item write path behind PUT /api/items/{id}.
// It shares the push semantics: create when absent, compare-and-increment
// when present.
func (s *syncService) UpdateItem(ctx context.Context, userID int64, itemID string, req models.UpdateItemRequest) (models.UpdateItemResponse, error) {
	if req.VaultID == "" || itemID == "" {
		return models.UpdateItemResponse{}, ErrInvalidDataProvided
	}
	if _, err := s.authorizeVault(ctx, userID, req.VaultID); err != nil {
		return models.UpdateItemResponse{}, err
	}

	item := models.PushItem{
		ID:         itemID,
		Type:       req.Type,
		Ciphertext: req.Ciphertext,
		Version:    req.Version,
	}

	result := s.pushOne(ctx, userID, req.VaultID, req.DeviceID, item)
	switch result.Status {
	case models.PushStatusConflict:
		return models.UpdateItemResponse{ID: itemID, Version: result.ServerVersion}, store.ErrVersionConflict
	case models.PushStatusError:
		return models.UpdateItemResponse{}, errors.New(result.Error)
	}

	return models.UpdateItemResponse{ID: itemID, Version: result.Version}, nil
}

// DeleteItem tombstones one item under the optimistic version check.
func (s *syncService) DeleteItem(ctx context.Context, userID int64, vaultID, itemID string, version int64, deviceID string) (models.UpdateItemResponse, error) {
	log := s.logger.With().Str("func", "syncService.DeleteItem").Logger()

	if vaultID == "" || itemID == "" {
		return models.UpdateItemResponse{}, ErrInvalidDataProvided
	}
	if _, err := s.authorizeVault(ctx, userID, vaultID); err != nil {
		return models.UpdateItemResponse{}, err
	}

	newVersion, serverVersion, err := s.items.SoftDeleteItem(ctx, vaultID, itemID, version, deviceID)
	if errors.Is(err, store.ErrVersionConflict) {
		return models.UpdateItemResponse{ID: itemID, Version: serverVersion}, err
	}
	if err != nil {
		log.Err(err).Str("item_id", itemID).Msg("error deleting item")
		return models.UpdateItemResponse{}, err
	}

	s.recordAndNotify(ctx, userID, deviceID, vaultID, itemID, models.SyncActionDelete, newVersion)

	return models.UpdateItemResponse{ID: itemID, Version: newVersion}, nil
}

func (s *syncService) History(ctx context.Context, userID int64, since time.Time) ([]models.SyncLogEntry, error) {
	return s.syncLog.ListSince(ctx, userID, since)
}
