package http

import (
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/internal/realtime"
	"github.com/vaultsync/vaultsync/internal/service"
)

type Handler struct {
	services *service.Services
	realtime *realtime.Server

	logger *logger.Logger
}

func NewHandler(services *service.Services, realtime *realtime.Server, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		services: services,
		realtime: realtime,
		logger:   logger,
	}
}
