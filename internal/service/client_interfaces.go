// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package service

import (
	"context"
	"time"

	"github.com/vaultsync/vaultsync/models"
)

//go:generate mockgen -source=client_interfaces.go -destination=../mock/client_services_mock.go -package=mock

// ClientSyncService runs sync cycles against the coordinator and keeps the
// local encrypted store converged with it.
type ClientSyncService interface {
	// Sync runs one full cycle: pull, apply, push, advance watermark.
	// At most one cycle runs at a time; calling Sync while a cycle is in
	// flight is a no-op that returns the current status.
	Sync(ctx context.Context) (models.SyncStatus, error)

	// Status returns a snapshot of the last completed (or running) cycle.
	Status() models.SyncStatus

	// HandleRemoteUpdate applies a single coordinator-originated item
	// update outside a sync cycle, as delivered by the realtime channel.
	HandleRemoteUpdate(ctx context.Context, item models.VaultItem) error

	// Conflicts returns the conflicts awaiting a human decision.
	Conflicts() []models.Conflict

	// ResolveConflict applies a resolution to a pending conflict.
	// ResolutionNeedsHuman leaves the conflict pending.
	ResolveConflict(ctx context.Context, conflict models.Conflict, resolution models.Resolution) error
}

// ConflictResolver decides what to do with a version conflict. It is a
// pure decision function: no I/O, no side effects, same answer for the
// same conflict.
type ConflictResolver interface {
	Resolve(conflict models.Conflict) models.Resolution
}

// ClientSyncJob owns the periodic background sync loop.
type ClientSyncJob interface {
	// Start launches the background loop. A previously running loop is
	// stopped first.
	Start(ctx context.Context, interval time.Duration)

	// Trigger requests an immediate out-of-band cycle, as after a
	// realtime SYNC_REQUEST. It never blocks; triggers arriving while a
	// cycle runs coalesce into one.
	Trigger()

	// Stop cancels the loop and waits for it to exit.
	Stop()
}

// Hooks are optional callbacks observing the sync lifecycle. Nil fields
// are skipped. Callbacks run on the syncing goroutine and must return
// quickly.
type Hooks struct {
	OnSyncStart    func()
	OnSyncComplete func(status models.SyncStatus)
	OnConflict     func(conflict models.Conflict)
	OnItemApplied  func(item models.VaultItem)
}

func (h Hooks) syncStart() {
	if h.OnSyncStart != nil {
		h.OnSyncStart()
	}
}

func (h Hooks) syncComplete(status models.SyncStatus) {
	if h.OnSyncComplete != nil {
		h.OnSyncComplete(status)
	}
}

func (h Hooks) conflict(c models.Conflict) {
	if h.OnConflict != nil {
		h.OnConflict(c)
	}
}

func (h Hooks) itemApplied(item models.VaultItem) {
	if h.OnItemApplied != nil {
		h.OnItemApplied(item)
	}
}
