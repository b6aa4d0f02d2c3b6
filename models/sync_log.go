package models

import "time"

// Sync log actions. Every accepted coordinator write is recorded with
// exactly one of these.
const (
	SyncActionCreate = "create"
	SyncActionUpdate = "update"
	SyncActionDelete = "delete"
)

// SyncLogEntry is one row of the append-only audit trail of accepted writes.
// Entries are never mutated, only appended; the log answers "what changed
// since T" for auditing purposes.
type SyncLogEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	VaultID   string    `json:"vault_id"`
	ItemID    string    `json:"item_id"`
	Action    string    `json:"action"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}
