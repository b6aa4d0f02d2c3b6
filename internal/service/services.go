package service

import (
	"github.com/vaultsync/vaultsync/internal/config"
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/internal/store"
)

type Services struct {
	SyncService SyncService
	AuthService AuthService
}

func NewServices(repos *store.Repositories, notifier Notifier, cfg config.StructuredConfig, logger *logger.Logger) *Services {
	return &Services{
		SyncService: NewSyncService(repos, notifier, logger),
		AuthService: NewAuthService(repos.Devices, repos.Vaults, cfg.Auth, logger),
	}
}
