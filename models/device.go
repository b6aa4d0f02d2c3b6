package models

import "time"

// Device identifies one sync participant of a user.
//
// Fingerprint is a stable client-generated identifier (UUID). It is used to
// exclude a device's own writes from the updates it pulls back and to route
// real-time broadcasts; it is trusted for loop prevention only, never as an
// authorization boundary.
type Device struct {
	Fingerprint string    `json:"fingerprint"`
	UserID      int64     `json:"user_id"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
}
