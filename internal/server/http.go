package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/vaultsync/vaultsync/internal/config"
	"github.com/vaultsync/vaultsync/internal/logger"
)

// httpHandler is what the transport needs from the handler layer; the chi
// mux satisfies it.
type httpHandler interface {
	http.Handler
}

type httpServer struct {
	server *http.Server
	logger *logger.Logger
}

func newHTTPServer(router httpHandler, cfg config.Server, logger *logger.Logger) *httpServer {
	return &httpServer{
		// Read/write timeouts stay unset: the realtime channel is served
		// on the same listener and its connections are long-lived.
		server: &http.Server{
			Addr:              cfg.HTTPAddress,
			Handler:           router,
			ReadHeaderTimeout: cfg.RequestTimeout,
		},
		logger: logger,
	}
}

func (h *httpServer) RunServer() {
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.logger.Err(err).Msg("HTTP server ListenAndServe")
	}
}

func (h *httpServer) Shutdown() {
	if err := h.server.Shutdown(context.Background()); err != nil {
		h.logger.Err(err).Msg("HTTP server Shutdown")
	}
}
