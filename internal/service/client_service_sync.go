// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vaultsync/vaultsync/internal/adapter"
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/internal/store"
	"github.com/vaultsync/vaultsync/models"
)

// clientSyncService drives the pull-apply-push cycle for one vault.
//
// A cycle is deliberately fault tolerant: one item failing to apply or
// push is recorded in the status and skipped, never aborting the rest of
// the cycle. Only transport-level failures (the pull itself, the push
// batch) end a cycle early, and even then the watermark is left untouched
// so the next cycle retries the same window.
type clientSyncService struct {
	localStore store.LocalStore
	adapter    adapter.ServerAdapter
	resolver   ConflictResolver
	hooks      Hooks

	vaultID  string
	deviceID string

	// isSyncing is the cycle mutual-exclusion flag; Sync is a no-op
	// while it is set.
	isSyncing atomic.Bool

	mu         sync.RWMutex
	lastStatus models.SyncStatus
	pending    []models.Conflict

	logger *logger.Logger
}

func NewClientSyncService(localStore store.LocalStore, serverAdapter adapter.ServerAdapter, resolver ConflictResolver, hooks Hooks, vaultID, deviceID string, logger *logger.Logger) ClientSyncService {
	if resolver == nil {
		resolver = NewConflictResolver()
	}
	return &clientSyncService{
		localStore: localStore,
		adapter:    serverAdapter,
		resolver:   resolver,
		hooks:      hooks,
		vaultID:    vaultID,
		deviceID:   deviceID,
		logger:     logger,
	}
}

// Sync implements ClientSyncService.
func (s *clientSyncService) Sync(ctx context.Context) (models.SyncStatus, error) {
	log := s.logger.With().Str("func", "clientSyncService.Sync").Logger()

	if !s.isSyncing.CompareAndSwap(false, true) {
		log.Debug().Msg("sync already in progress, skipping")
		return s.Status(), nil
	}
	defer s.isSyncing.Store(false)

	s.hooks.syncStart()

	status := models.SyncStatus{IsSyncing: true}

	watermark, err := s.localStore.Watermark(ctx)
	if err != nil {
		return s.finish(status, fmt.Errorf("read watermark: %w", err))
	}

	pull, err := s.adapter.Pull(ctx, models.PullRequest{
		VaultID:           s.vaultID,
		LastSyncTimestamp: models.TimeToMillis(watermark),
		DeviceID:          s.deviceID,
	})
	if err != nil {
		return s.finish(status, fmt.Errorf("pull: %w", err))
	}

	s.applyPulled(ctx, pull, &status)
	pushErr := s.pushChanges(ctx, &status)
	s.pushDeletes(ctx, &status)

	// A push batch that never reached the coordinator leaves the old
	// watermark in place. The dirty flags would make a retry lossless
	// anyway, but re-pulling the same window keeps the next cycle's view
	// consistent with what this one failed to finish.
	if pushErr != nil {
		log.Debug().Err(pushErr).Msg("push failed, watermark left unchanged")
		return s.finish(status, nil)
	}

	// The watermark is the coordinator's clock, never the client's: it
	// only advances after the cycle has done its best with the window.
	if err = s.localStore.SetWatermark(ctx, models.MillisToTime(pull.Timestamp)); err != nil {
		return s.finish(status, fmt.Errorf("advance watermark: %w", err))
	}
	status.LastSync = pull.Timestamp

	log.Debug().
		Int("items_updated", status.ItemsUpdated).
		Int("items_conflicted", status.ItemsConflicted).
		Int("errors", len(status.Errors)).
		Msg("sync cycle finished")

	return s.finish(status, nil)
}

// finish records the final status, fires the completion hook and returns.
func (s *clientSyncService) finish(status models.SyncStatus, err error) (models.SyncStatus, error) {
	if err != nil {
		status.Errors = append(status.Errors, err.Error())
	}
	status.IsSyncing = false

	s.mu.Lock()
	s.lastStatus = status
	s.mu.Unlock()

	s.hooks.syncComplete(status)
	return status, err
}

// applyPulled applies the coordinator's change window item by item.
func (s *clientSyncService) applyPulled(ctx context.Context, pull models.PullResponse, status *models.SyncStatus) {
	log := s.logger.With().Str("func", "clientSyncService.applyPulled").Logger()

	for _, item := range pull.Updates {
		if err := s.applyRemote(ctx, item, status); err != nil {
			log.Warn().Err(err).Str("item_id", item.ID).Msg("error applying pulled item")
			status.Errors = append(status.Errors, fmt.Sprintf("apply %s: %v", item.ID, err))
			continue
		}
		status.ItemsUpdated++
	}

	for _, tombstone := range pull.Deleted {
		if err := s.applyTombstone(ctx, tombstone, status); err != nil {
			log.Warn().Err(err).Str("item_id", tombstone.ItemID).Msg("error applying pulled tombstone")
			status.Errors = append(status.Errors, fmt.Sprintf("delete %s: %v", tombstone.ItemID, err))
			continue
		}
		status.ItemsUpdated++
	}
}

func (s *clientSyncService) applyRemote(ctx context.Context, item models.VaultItem, status *models.SyncStatus) error {
	if item.Deleted() {
		return s.applyTombstone(ctx, models.Tombstone{
			ItemID:         item.ID,
			VaultID:        item.VaultID,
			Version:        item.Version,
			LastModifiedBy: item.LastModifiedBy,
			DeletedAt:      *item.DeletedAt,
		}, status)
	}

	if err := s.localStore.ApplyRemote(ctx, item); err != nil {
		return err
	}
	s.hooks.itemApplied(item)
	return nil
}

// applyTombstone applies a coordinator-side delete. An item with unpushed
// local changes is never erased underneath the user: the delete is turned
// into a conflict between the local edit and the remote tombstone.
func (s *clientSyncService) applyTombstone(ctx context.Context, t models.Tombstone, status *models.SyncStatus) error {
	err := s.localStore.ApplyTombstone(ctx, t)
	if !errors.Is(err, store.ErrDirtyLocalItem) {
		return err
	}

	local, getErr := s.localStore.Get(ctx, t.ItemID)
	if getErr != nil {
		return getErr
	}

	s.handleConflict(ctx, models.Conflict{
		ItemID:        t.ItemID,
		VaultID:       t.VaultID,
		ClientVersion: local.Version,
		ServerVersion: t.Version,
		LocalItem:     &local,
	}, status)
	return nil
}

// pushChanges uploads the locally modified items and processes each
// result independently. The returned error is non-nil only when the batch
// itself never made it, so the caller knows the window is unfinished.
func (s *clientSyncService) pushChanges(ctx context.Context, status *models.SyncStatus) error {
	log := s.logger.With().Str("func", "clientSyncService.pushChanges").Logger()

	dirty, err := s.localStore.ListOwnChanges(ctx, models.MillisToTime(0))
	if err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("list own changes: %v", err))
		return err
	}
	if len(dirty) == 0 {
		return nil
	}

	items := make([]models.PushItem, 0, len(dirty))
	byID := make(map[string]models.VaultItem, len(dirty))
	for _, item := range dirty {
		items = append(items, models.PushItem{
			ID:         item.ID,
			Type:       item.Type,
			Ciphertext: item.Ciphertext,
			Version:    item.Version,
		})
		byID[item.ID] = item
	}

	resp, err := s.adapter.Push(ctx, models.PushRequest{
		VaultID:  s.vaultID,
		DeviceID: s.deviceID,
		Items:    items,
	})
	if err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("push: %v", err))
		return err
	}

	for _, result := range resp.Results {
		switch result.Status {
		case models.PushStatusSuccess:
			if err := s.localStore.ApplyVersion(ctx, result.ID, result.Version); err != nil {
				log.Warn().Err(err).Str("item_id", result.ID).Msg("error recording accepted version")
				status.Errors = append(status.Errors, fmt.Sprintf("record version %s: %v", result.ID, err))
				continue
			}
			status.ItemsUpdated++

		case models.PushStatusConflict:
			local := byID[result.ID]
			s.handleConflict(ctx, models.Conflict{
				ItemID:        result.ID,
				VaultID:       s.vaultID,
				ClientVersion: result.ClientVersion,
				ServerVersion: result.ServerVersion,
				LocalItem:     &local,
			}, status)

		default:
			log.Warn().Str("item_id", result.ID).Str("error", result.Error).Msg("push item failed")
			status.Errors = append(status.Errors, fmt.Sprintf("push %s: %s", result.ID, result.Error))
		}
	}

	return nil
}

// pushDeletes propagates local tombstones to the coordinator.
func (s *clientSyncService) pushDeletes(ctx context.Context, status *models.SyncStatus) {
	log := s.logger.With().Str("func", "clientSyncService.pushDeletes").Logger()

	deleted, err := s.localStore.ListOwnDeletes(ctx)
	if err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("list own deletes: %v", err))
		return
	}

	for _, item := range deleted {
		resp, err := s.adapter.DeleteItem(ctx, item.ID, models.DeleteItemRequest{
			VaultID:  s.vaultID,
			Version:  item.Version,
			DeviceID: s.deviceID,
		})
		switch {
		case errors.Is(err, adapter.ErrVersionConflict):
			local := item
			s.handleConflict(ctx, models.Conflict{
				ItemID:        item.ID,
				VaultID:       s.vaultID,
				ClientVersion: item.Version,
				ServerVersion: resp.Version,
				LocalItem:     &local,
			}, status)
			continue
		case errors.Is(err, adapter.ErrNotFound):
			// Already gone on the coordinator; just drop the local row.
		case err != nil:
			log.Warn().Err(err).Str("item_id", item.ID).Msg("error pushing delete")
			status.Errors = append(status.Errors, fmt.Sprintf("delete %s: %v", item.ID, err))
			continue
		}

		if err := s.localStore.DropItem(ctx, item.ID); err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("drop %s: %v", item.ID, err))
			continue
		}
		status.ItemsUpdated++
	}
}

// handleConflict runs the resolver and either applies the decision or
// parks the conflict for the user.
func (s *clientSyncService) handleConflict(ctx context.Context, conflict models.Conflict, status *models.SyncStatus) {
	log := s.logger.With().Str("func", "clientSyncService.handleConflict").Logger()

	status.ItemsConflicted++

	resolution := s.resolver.Resolve(conflict)
	if resolution == models.ResolutionNeedsHuman {
		s.mu.Lock()
		s.pending = append(s.pending, conflict)
		s.mu.Unlock()
		s.hooks.conflict(conflict)
		return
	}

	if err := s.ResolveConflict(ctx, conflict, resolution); err != nil {
		log.Warn().Err(err).Str("item_id", conflict.ItemID).Msg("error applying conflict resolution")
		status.Errors = append(status.Errors, fmt.Sprintf("resolve %s: %v", conflict.ItemID, err))
	}
}

// Status implements ClientSyncService.
func (s *clientSyncService) Status() models.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := s.lastStatus
	status.IsSyncing = s.isSyncing.Load()
	return status
}

// HandleRemoteUpdate implements ClientSyncService. Realtime updates use
// the same apply path as pulled ones, so version guards hold either way.
// A conflict raised here lands in the pending list like any other; the
// throwaway status only absorbs the counters.
func (s *clientSyncService) HandleRemoteUpdate(ctx context.Context, item models.VaultItem) error {
	var status models.SyncStatus
	return s.applyRemote(ctx, item, &status)
}

// Conflicts implements ClientSyncService.
func (s *clientSyncService) Conflicts() []models.Conflict {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Conflict, len(s.pending))
	copy(out, s.pending)
	return out
}

// ResolveConflict implements ClientSyncService.
//
// Choosing the local copy re-submits it with the coordinator's version so
// the compare-and-increment accepts the write. Choosing the server copy
// is purely local: the coordinator's state is already what the user
// picked, so the next pull (or the conflict's ServerItem when present)
// converges the store.
func (s *clientSyncService) ResolveConflict(ctx context.Context, conflict models.Conflict, resolution models.Resolution) error {
	log := s.logger.With().Str("func", "clientSyncService.ResolveConflict").Str("item_id", conflict.ItemID).Logger()

	switch resolution {
	case models.ResolutionNeedsHuman:
		return nil

	case models.ResolutionUseLocal:
		if conflict.LocalItem == nil {
			return ErrInvalidDataProvided
		}
		resp, err := s.adapter.UpdateItem(ctx, conflict.ItemID, models.UpdateItemRequest{
			VaultID:    conflict.VaultID,
			Type:       conflict.LocalItem.Type,
			Ciphertext: conflict.LocalItem.Ciphertext,
			Version:    conflict.ServerVersion,
			DeviceID:   s.deviceID,
		})
		if err != nil {
			return fmt.Errorf("resubmit local item: %w", err)
		}
		if err = s.localStore.ApplyVersion(ctx, conflict.ItemID, resp.Version); err != nil {
			return fmt.Errorf("record accepted version: %w", err)
		}

	case models.ResolutionUseServer:
		if conflict.ServerItem != nil {
			if err := s.localStore.ApplyRemote(ctx, *conflict.ServerItem); err != nil {
				return fmt.Errorf("apply server item: %w", err)
			}
		} else if err := s.localStore.ApplyVersion(ctx, conflict.ItemID, conflict.ServerVersion); err != nil {
			// No server payload at hand: clear the dirty mark so the next
			// pull's copy wins cleanly.
			return fmt.Errorf("clear local changes: %w", err)
		}

	default:
		return fmt.Errorf("%w: unknown resolution %q", ErrInvalidDataProvided, resolution)
	}

	s.mu.Lock()
	for i, pending := range s.pending {
		if pending.ItemID == conflict.ItemID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	log.Debug().Str("resolution", string(resolution)).Msg("conflict resolved")
	return nil
}
