// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vaultsync/vaultsync/internal/config"
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/internal/service"
	"github.com/vaultsync/vaultsync/models"
)

// Server upgrades HTTP requests to channel connections and runs the
// per-connection message loop. Connections authenticate in-band: the
// first message must be AUTH, everything before that is untrusted.
type Server struct {
	hub  *Hub
	auth service.AuthService
	sync service.SyncService

	upgrader    websocket.Upgrader
	authTimeout time.Duration

	logger *logger.Logger
}

func NewServer(hub *Hub, auth service.AuthService, sync service.SyncService, cfg config.Realtime, logger *logger.Logger) *Server {
	authTimeout := cfg.AuthTimeout
	if authTimeout <= 0 {
		authTimeout = 10 * time.Second
	}

	return &Server{
		hub:  hub,
		auth: auth,
		sync: sync,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		authTimeout: authTimeout,
		logger:      logger,
	}
}

// HandleWS is the GET /ws endpoint.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	log := s.logger.With().Str("func", "Server.HandleWS").Logger()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c, err := s.authenticate(r, ws)
	if err != nil {
		log.Debug().Err(err).Msg("channel authentication failed")
		_ = ws.Close()
		return
	}

	s.hub.register(c)
	defer func() {
		s.hub.unregister(c)
		_ = ws.Close()
	}()

	s.readLoop(r, c)
}

// authenticate enforces the AUTH handshake: the first message must arrive
// within the auth timeout and carry a valid token.
func (s *Server) authenticate(r *http.Request, ws *websocket.Conn) (*client, error) {
	_ = ws.SetReadDeadline(time.Now().Add(s.authTimeout))

	var msg models.ChannelMessage
	if err := ws.ReadJSON(&msg); err != nil {
		return nil, err
	}
	if msg.Type != models.MsgAuth {
		_ = ws.WriteJSON(models.ChannelMessage{Type: models.MsgAuthError, Error: "expected AUTH"})
		return nil, service.ErrInvalidDataProvided
	}

	token, err := s.auth.ParseToken(r.Context(), msg.Token)
	if err != nil {
		_ = ws.WriteJSON(models.ChannelMessage{Type: models.MsgAuthError, Error: "invalid token"})
		return nil, err
	}

	// The parse step already validated and cached the subject claim; use
	// the cached identifier the same way the REST middleware does.
	userID := token.UserID
	if userID == 0 {
		_ = ws.WriteJSON(models.ChannelMessage{Type: models.MsgAuthError, Error: "invalid token"})
		return nil, service.ErrInvalidDataProvided
	}

	// Authenticated: lift the handshake deadline.
	_ = ws.SetReadDeadline(time.Time{})

	c := &client{ws: ws, userID: userID, deviceID: msg.DeviceID}
	if err = c.send(models.ChannelMessage{Type: models.MsgAuthSuccess, UserID: userID}); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *Server) readLoop(r *http.Request, c *client) {
	log := s.logger.With().
		Str("func", "Server.readLoop").
		Int64("user_id", c.userID).
		Str("device_id", c.deviceID).
		Logger()

	for {
		var msg models.ChannelMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("channel read error")
			}
			return
		}

		switch msg.Type {
		case models.MsgPing:
			if err := c.send(models.ChannelMessage{Type: models.MsgPong}); err != nil {
				return
			}

		case models.MsgSyncRequest:
			s.handleSyncRequest(r, c, msg)

		case models.MsgItemUpdateAck:
			log.Debug().Str("vault_id", msg.VaultID).Msg("item update acknowledged")

		default:
			if err := c.send(models.ChannelMessage{Type: models.MsgError, Error: "unknown message type"}); err != nil {
				return
			}
		}
	}
}

// handleSyncRequest serves a pull over the channel, reusing the same sync
// engine as the REST endpoint.
func (s *Server) handleSyncRequest(r *http.Request, c *client, msg models.ChannelMessage) {
	log := s.logger.With().Str("func", "Server.handleSyncRequest").Int64("user_id", c.userID).Logger()

	pull, err := s.sync.Pull(r.Context(), c.userID, models.PullRequest{
		VaultID:           msg.VaultID,
		LastSyncTimestamp: msg.LastSyncTimestamp,
		DeviceID:          c.deviceID,
	})
	if err != nil {
		log.Warn().Err(err).Str("vault_id", msg.VaultID).Msg("error serving sync request")
		_ = c.send(models.ChannelMessage{Type: models.MsgError, Error: err.Error()})
		return
	}

	_ = c.send(models.ChannelMessage{Type: models.MsgSyncResponse, VaultID: msg.VaultID, Sync: &pull})
}
