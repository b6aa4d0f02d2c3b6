// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

// Package client implements the headless sync agent runtime.
//
// It wires the local encrypted store, the coordinator adapter, the
// background sync job, and the real-time channel into a single process
// lifecycle.
package client

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vaultsync/vaultsync/internal/adapter"
	"github.com/vaultsync/vaultsync/internal/config"
	"github.com/vaultsync/vaultsync/internal/crypto"
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/internal/realtime"
	"github.com/vaultsync/vaultsync/internal/service"
	"github.com/vaultsync/vaultsync/internal/store"
	"github.com/vaultsync/vaultsync/models"
)

// Client is the minimal lifecycle contract for runnable agent
// applications.
type Client interface {
	// Run starts the agent and blocks until exit.
	Run() error
}

type App struct {
	cfg           *config.ClientConfig
	serverAdapter adapter.ServerAdapter
	syncService   service.ClientSyncService
	syncJob       service.ClientSyncJob
	channel       *realtime.Channel

	logger *logger.Logger
}

func NewApp(cfg *config.ClientConfig, log *logger.Logger) (*App, error) {
	ctx := context.Background()

	db, err := store.NewConnectSQLite(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	provider := crypto.NewProvider()
	salt, err := loadOrCreateSalt(cfg.Vault.SaltPath)
	if err != nil {
		return nil, fmt.Errorf("load key salt: %w", err)
	}
	key := provider.DeriveKey(cfg.Vault.Passphrase, salt)

	localStore := store.NewLocalStore(db, provider, key,
		cfg.Vault.VaultID, cfg.Vault.DeviceFingerprint, log)

	serverAdapter, err := adapter.NewHTTPServerAdapter(cfg.Adapter, log)
	if err != nil {
		return nil, fmt.Errorf("create server adapter: %w", err)
	}

	hooks := service.Hooks{
		OnConflict: func(conflict models.Conflict) {
			log.Warn().
				Str("item_id", conflict.ItemID).
				Int64("server_version", conflict.ServerVersion).
				Msg("sync conflict needs resolution")
		},
	}

	syncService := service.NewClientSyncService(localStore, serverAdapter,
		service.NewConflictResolver(), hooks,
		cfg.Vault.VaultID, cfg.Vault.DeviceFingerprint, log)

	app := &App{
		cfg:           cfg,
		serverAdapter: serverAdapter,
		syncService:   syncService,
		syncJob:       service.NewClientSyncJob(syncService),
		logger:        log,
	}

	channel, err := realtime.NewChannel(cfg.Adapter, cfg.Vault.DeviceFingerprint, realtime.Callbacks{
		OnItemUpdated: app.onItemUpdated,
		OnConnected: func() {
			log.Info().Msg("realtime channel connected")
		},
		OnDisconnected: func(err error) {
			log.Warn().Err(err).Msg("realtime channel dropped")
		},
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create realtime channel: %w", err)
	}
	app.channel = channel

	return app, nil
}

// Run registers the device, starts the periodic sync job and the realtime
// channel, and blocks until a stop signal arrives.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
	defer stop()

	if _, err := a.serverAdapter.RegisterDevice(ctx, a.cfg.Vault.DeviceFingerprint); err != nil {
		a.logger.Warn().Err(err).Msg("device registration failed, continuing")
	}

	if _, err := a.syncService.Sync(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("initial sync failed, will retry on schedule")
	}

	a.syncJob.Start(ctx, a.cfg.Workers.SyncInterval)
	defer a.syncJob.Stop()

	// The channel is best-effort: polling still synchronizes when the
	// coordinator cannot be reached over websocket.
	if err := a.channel.Connect(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("realtime channel unavailable, relying on periodic sync")
	}
	defer a.channel.Close()

	<-ctx.Done()
	a.logger.Info().Msg("sync agent shutting down")

	return nil
}

// onItemUpdated applies a coordinator-originated write immediately and
// schedules a full cycle so tombstones and push results catch up too.
func (a *App) onItemUpdated(item models.VaultItem) {
	if err := a.syncService.HandleRemoteUpdate(context.Background(), item); err != nil {
		a.logger.Err(err).Str("item_id", item.ID).Msg("applying realtime update")
	}
	a.syncJob.Trigger()
}

// loadOrCreateSalt reads the key-derivation salt, generating and persisting
// a fresh one on first run. The salt is not secret but must be stable.
func loadOrCreateSalt(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("salt path is not configured")
	}

	salt, err := os.ReadFile(path)
	if err == nil && len(salt) > 0 {
		return salt, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read salt file: %w", err)
	}

	salt, err = crypto.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if err = os.WriteFile(path, salt, 0600); err != nil {
		return nil, fmt.Errorf("persist salt file: %w", err)
	}

	return salt, nil
}
