// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

// Package realtime implements the websocket channel between coordinator
// and clients: the server-side hub that fans accepted writes out to a
// user's other devices, and the client-side channel with automatic
// reconnection.
package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/models"
)

// client is one authenticated websocket connection. Writes are serialised
// through mu because gorilla connections allow only one concurrent writer.
type client struct {
	ws       *websocket.Conn
	userID   int64
	deviceID string

	mu sync.Mutex
}

func (c *client) send(msg models.ChannelMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

// Hub is the per-user connection registry. It implements
// service.Notifier: an accepted write is pushed to every connection of
// the same user except the device that made it.
type Hub struct {
	mu    sync.RWMutex
	conns map[int64]map[*client]struct{}

	logger *logger.Logger
}

func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		conns:  make(map[int64]map[*client]struct{}),
		logger: logger,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[c.userID] == nil {
		h.conns[c.userID] = make(map[*client]struct{})
	}
	h.conns[c.userID][c] = struct{}{}

	h.logger.Debug().
		Str("func", "Hub.register").
		Int64("user_id", c.userID).
		Str("device_id", c.deviceID).
		Int("connections", len(h.conns[c.userID])).
		Msg("channel connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.conns[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, c.userID)
		}
	}

	h.logger.Debug().
		Str("func", "Hub.unregister").
		Int64("user_id", c.userID).
		Str("device_id", c.deviceID).
		Msg("channel disconnected")
}

// Broadcast sends msg to every connection of userID except those whose
// device is excludeDevice. Dead connections are dropped on write failure;
// their read loops clean up the rest.
func (h *Hub) Broadcast(userID int64, excludeDevice string, msg models.ChannelMessage) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		if excludeDevice != "" && c.deviceID == excludeDevice {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(msg); err != nil {
			h.logger.Warn().Err(err).
				Str("func", "Hub.Broadcast").
				Int64("user_id", userID).
				Str("device_id", c.deviceID).
				Msg("error writing to channel, dropping connection")
			h.unregister(c)
			_ = c.ws.Close()
		}
	}
}

// NotifyItemUpdated implements service.Notifier.
func (h *Hub) NotifyItemUpdated(userID int64, excludeDevice string, item models.VaultItem) {
	h.Broadcast(userID, excludeDevice, models.ChannelMessage{
		Type:    models.MsgItemUpdated,
		VaultID: item.VaultID,
		Item:    &item,
	})
}

// Connections reports the number of live connections for a user.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}
