// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vaultsync/vaultsync/internal/config"
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/models"
)

var (
	ErrAuthRejected  = errors.New("channel authentication rejected")
	ErrChannelClosed = errors.New("channel closed")
	ErrNotConnected  = errors.New("channel not connected")
)

// Callbacks are the client-side observers of channel traffic. Nil fields
// are skipped. Callbacks run on the channel's read goroutine.
type Callbacks struct {
	// OnItemUpdated fires for every ITEM_UPDATED pushed by the
	// coordinator. The channel acknowledges the message after the
	// callback returns without panicking.
	OnItemUpdated func(item models.VaultItem)

	// OnSyncResponse fires when a SYNC_REQUEST is answered.
	OnSyncResponse func(pull models.PullResponse)

	// OnConnected fires after every successful AUTH handshake, first
	// connect and reconnects alike.
	OnConnected func()

	// OnDisconnected fires when the connection drops and a reconnect has
	// been scheduled.
	OnDisconnected func(err error)
}

// Channel is the client end of the realtime connection.
//
// Reconnection policy: when the connection drops, exactly one reconnect
// attempt is scheduled after the configured delay. A failed attempt
// schedules the next one; overlapping attempts cannot exist because the
// pending timer is tracked under the mutex. Every (re)connection performs
// the full AUTH handshake again.
type Channel struct {
	url            string
	deviceID       string
	reconnectDelay time.Duration
	callbacks      Callbacks

	mu             sync.Mutex
	token          string
	ws             *websocket.Conn
	reconnectTimer *time.Timer
	closed         bool

	// wmu serialises writes; gorilla connections allow one writer.
	wmu sync.Mutex

	logger *logger.Logger
}

func NewChannel(cfg config.ClientAdapter, deviceID string, callbacks Callbacks, logger *logger.Logger) (*Channel, error) {
	wsURL := strings.TrimSpace(cfg.WebSocketURL)
	if wsURL == "" {
		return nil, fmt.Errorf("empty websocket url")
	}

	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}

	return &Channel{
		url:            wsURL,
		deviceID:       deviceID,
		reconnectDelay: delay,
		callbacks:      callbacks,
		token:          strings.TrimSpace(cfg.Token),
		logger:         logger,
	}, nil
}

// SetToken replaces the token used by the next AUTH handshake.
func (c *Channel) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

// Connect dials the coordinator and performs the AUTH handshake. On
// success the read loop starts in the background; on handshake rejection
// the connection is closed and no reconnect is scheduled (a bad token
// will not get better by retrying).
func (c *Channel) Connect(ctx context.Context) error {
	log := c.logger.With().Str("func", "Channel.Connect").Logger()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	token := c.token
	c.mu.Unlock()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial channel: %w", err)
	}

	if err = ws.WriteJSON(models.ChannelMessage{
		Type:     models.MsgAuth,
		Token:    token,
		DeviceID: c.deviceID,
	}); err != nil {
		_ = ws.Close()
		return fmt.Errorf("send auth: %w", err)
	}

	var reply models.ChannelMessage
	if err = ws.ReadJSON(&reply); err != nil {
		_ = ws.Close()
		return fmt.Errorf("read auth reply: %w", err)
	}
	if reply.Type != models.MsgAuthSuccess {
		_ = ws.Close()
		return fmt.Errorf("%w: %s", ErrAuthRejected, reply.Error)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ws.Close()
		return ErrChannelClosed
	}
	c.ws = ws
	c.mu.Unlock()

	log.Debug().Str("url", c.url).Msg("channel connected")
	if c.callbacks.OnConnected != nil {
		c.callbacks.OnConnected()
	}

	go c.readLoop(ctx, ws)
	return nil
}

func (c *Channel) readLoop(ctx context.Context, ws *websocket.Conn) {
	log := c.logger.With().Str("func", "Channel.readLoop").Logger()

	for {
		var msg models.ChannelMessage
		if err := ws.ReadJSON(&msg); err != nil {
			c.handleDisconnect(ctx, ws, err)
			return
		}

		switch msg.Type {
		case models.MsgPong:
			// Heartbeat answer, nothing to do.

		case models.MsgItemUpdated:
			if msg.Item == nil {
				continue
			}
			if c.callbacks.OnItemUpdated != nil {
				c.callbacks.OnItemUpdated(*msg.Item)
			}
			_ = c.Send(models.ChannelMessage{Type: models.MsgItemUpdateAck, VaultID: msg.VaultID})

		case models.MsgSyncResponse:
			if msg.Sync != nil && c.callbacks.OnSyncResponse != nil {
				c.callbacks.OnSyncResponse(*msg.Sync)
			}

		case models.MsgError:
			log.Warn().Str("error", msg.Error).Msg("channel error message")

		default:
			log.Debug().Str("type", msg.Type).Msg("unhandled channel message")
		}
	}
}

// handleDisconnect tears the connection down and schedules the single
// reconnect attempt.
func (c *Channel) handleDisconnect(ctx context.Context, ws *websocket.Conn, cause error) {
	log := c.logger.With().Str("func", "Channel.handleDisconnect").Logger()

	_ = ws.Close()

	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	closed := c.closed
	c.mu.Unlock()

	if closed || ctx.Err() != nil {
		return
	}

	log.Debug().Err(cause).Dur("delay", c.reconnectDelay).Msg("channel dropped, scheduling reconnect")
	if c.callbacks.OnDisconnected != nil {
		c.callbacks.OnDisconnected(cause)
	}

	c.scheduleReconnect(ctx)
}

// scheduleReconnect arms the reconnect timer unless one is already
// pending. At most one timer exists at any moment.
func (c *Channel) scheduleReconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.reconnectTimer != nil {
		return
	}

	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		closed := c.closed
		c.mu.Unlock()

		if closed || ctx.Err() != nil {
			return
		}

		if err := c.Connect(ctx); err != nil {
			if errors.Is(err, ErrAuthRejected) || errors.Is(err, ErrChannelClosed) {
				return
			}
			c.scheduleReconnect(ctx)
		}
	})
}

// Send writes one message to the channel.
func (c *Channel) Send(msg models.ChannelMessage) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return ws.WriteJSON(msg)
}

// Ping sends a liveness probe.
func (c *Channel) Ping() error {
	return c.Send(models.ChannelMessage{Type: models.MsgPing})
}

// RequestSync asks the coordinator for a pull over the channel.
func (c *Channel) RequestSync(vaultID string, lastSync int64) error {
	return c.Send(models.ChannelMessage{
		Type:              models.MsgSyncRequest,
		VaultID:           vaultID,
		LastSyncTimestamp: lastSync,
	})
}

// Close shuts the channel down for good: the connection is closed and any
// pending reconnect timer is cancelled.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}

	if c.ws != nil {
		err := c.ws.Close()
		c.ws = nil
		return err
	}
	return nil
}
