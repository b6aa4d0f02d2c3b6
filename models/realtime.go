// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package models

// Real-time channel message types. One JSON object per websocket message;
// Type selects which of the optional ChannelMessage fields are meaningful.
const (
	// MsgAuth must be the first message on every (re)connection:
	// {type, token, device_id}. The server replies with MsgAuthSuccess
	// ({type, user_id}) or closes the connection after MsgAuthError.
	MsgAuth        = "AUTH"
	MsgAuthSuccess = "AUTH_SUCCESS"
	MsgAuthError   = "AUTH_ERROR"

	// MsgPing / MsgPong form the liveness heartbeat. No side effects.
	MsgPing = "PING"
	MsgPong = "PONG"

	// MsgItemUpdated is broadcast to all other connections of the same
	// user when a push is accepted: {type, vault_id, item}. The
	// originating connection is explicitly excluded.
	MsgItemUpdated   = "ITEM_UPDATED"
	MsgItemUpdateAck = "ITEM_UPDATE_ACK"

	// MsgSyncRequest asks for a pull over the channel instead of REST:
	// {type, vault_id, last_sync_timestamp}. The server answers with
	// MsgSyncResponse carrying the same payload as the REST pull.
	MsgSyncRequest  = "SYNC_REQUEST"
	MsgSyncResponse = "SYNC_RESPONSE"

	MsgError = "ERROR"
)

// ChannelMessage is the single wire envelope of the real-time channel.
// Fields are populated according to Type; everything unused is omitted.
type ChannelMessage struct {
	Type string `json:"type"`

	// AUTH fields.
	Token    string `json:"token,omitempty"`
	DeviceID string `json:"device_id,omitempty"`

	// AUTH_SUCCESS field.
	UserID int64 `json:"user_id,omitempty"`

	// ITEM_UPDATED fields.
	VaultID string     `json:"vault_id,omitempty"`
	Item    *VaultItem `json:"item,omitempty"`

	// SYNC_REQUEST / SYNC_RESPONSE fields.
	LastSyncTimestamp int64         `json:"last_sync_timestamp,omitempty"`
	Sync              *PullResponse `json:"sync,omitempty"`

	// ERROR / AUTH_ERROR field.
	Error string `json:"error,omitempty"`
}
