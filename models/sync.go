// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package models

import "time"

// Push item statuses reported by the coordinator, one per pushed item.
const (
	PushStatusSuccess  = "success"
	PushStatusConflict = "conflict"
	PushStatusError    = "error"
)

// PullRequest asks the coordinator for everything that changed in a vault
// after the client's last successful sync.
//
// LastSyncTimestamp is the client's watermark in Unix milliseconds; zero
// means "never synced" and requests a full resync. DeviceID is included so
// the coordinator can exclude the device's own writes from the response
// (loop prevention).
type PullRequest struct {
	VaultID           string `json:"vault_id"`
	LastSyncTimestamp int64  `json:"last_sync_timestamp"`
	DeviceID          string `json:"device_id"`
}

// PullResponse carries the changes accumulated since the requested watermark.
//
// Timestamp is the coordinator's current clock in Unix milliseconds. The
// client must persist this value, never its own clock, as the new
// watermark, so pull windows are always relative to the coordinator.
type PullResponse struct {
	Updates   []VaultItem `json:"updates"`
	Deleted   []Tombstone `json:"deleted"`
	Timestamp int64       `json:"timestamp"`
}

// PushItem is one locally modified item sent to the coordinator.
// Version is the highest version the pushing device has seen for the item;
// the coordinator uses it for the optimistic-concurrency check but never
// stores it directly.
type PushItem struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Ciphertext string `json:"encrypted_data"`
	Version    int64  `json:"version"`
}

// PushRequest is a batch of local changes for one vault.
type PushRequest struct {
	VaultID  string     `json:"vault_id"`
	DeviceID string     `json:"device_id"`
	Items    []PushItem `json:"items"`
}

// PushItemResult is the per-item outcome of a push. Exactly one of the
// optional fields is populated depending on Status:
//
//   - success  → Version holds the new authoritative version
//   - conflict → ServerVersion and ClientVersion describe the mismatch
//   - error    → Error holds a short failure description
type PushItemResult struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Version       int64  `json:"version,omitempty"`
	ServerVersion int64  `json:"server_version,omitempty"`
	ClientVersion int64  `json:"client_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// PushResponse aggregates the independent per-item results of one push batch.
// A batch with failed items is not an overall failure; callers inspect each
// entry.
type PushResponse struct {
	Results []PushItemResult `json:"results"`
}

// UpdateItemRequest is the body of PUT /api/items/{id}: a direct, non-sync
// item write with an explicit expected version.
type UpdateItemRequest struct {
	VaultID    string `json:"vault_id"`
	Type       string `json:"type"`
	Ciphertext string `json:"encrypted_data"`
	Version    int64  `json:"version"`
	DeviceID   string `json:"device_id"`
}

// DeleteItemRequest is the body of DELETE /api/items/{id}.
type DeleteItemRequest struct {
	VaultID  string `json:"vault_id"`
	Version  int64  `json:"version"`
	DeviceID string `json:"device_id"`
}

// UpdateItemResponse is returned on a successful direct item write.
type UpdateItemResponse struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

// VersionConflictResponse is the 409 body for a stale direct item write.
type VersionConflictResponse struct {
	Error           string `json:"error"`
	CurrentVersion  int64  `json:"current_version"`
	ProvidedVersion int64  `json:"provided_version"`
}

// SyncStatus is the ephemeral, client-side record of one sync cycle.
// It is reset at the start of every cycle and snapshotted for observers at
// the end; it is never persisted.
type SyncStatus struct {
	// IsSyncing reports whether a cycle is currently running. It doubles
	// as the mutual-exclusion flag: entering a cycle while one is running
	// is a no-op.
	IsSyncing bool `json:"is_syncing"`

	// LastSync is the coordinator-reported timestamp (Unix milliseconds)
	// of the last successful cycle, zero if the vault has never synced.
	LastSync int64 `json:"last_sync"`

	ItemsUpdated    int      `json:"items_updated"`
	ItemsConflicted int      `json:"items_conflicted"`
	Errors          []string `json:"errors,omitempty"`
}

// MillisToTime converts a wire timestamp (Unix milliseconds) to time.Time.
// Zero maps to the zero time, which repositories treat as "from the
// beginning" (full resync).
func MillisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// TimeToMillis converts a time.Time to a wire timestamp.
func TimeToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
