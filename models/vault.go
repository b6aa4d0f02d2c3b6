package models

import "time"

// Vault is a named collection of encrypted items belonging to one user.
// The sync engine only needs it for ownership checks; everything else about
// vault management lives in the account subsystem.
type Vault struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
