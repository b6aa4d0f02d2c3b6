package store

import (
	"context"
	"time"

	"github.com/vaultsync/vaultsync/models"
)

//go:generate mockgen -source=client_interfaces.go -destination=../mock/local_store_mock.go -package=mock

// LocalStore is the client-side encrypted item store. Plaintext crosses
// its boundary only on Put and GetDecrypted; everything else operates on
// ciphertext blobs produced by the crypto provider.
type LocalStore interface {
	// Put encrypts plaintext and stores it under itemID. A new item gets
	// version 1; an existing item keeps its version (the coordinator owns
	// the counter) and is marked locally modified.
	Put(ctx context.Context, itemID, itemType string, plaintext []byte) (models.VaultItem, error)

	// Get returns the stored record with its ciphertext, or
	// [ErrItemNotFound].
	Get(ctx context.Context, itemID string) (models.VaultItem, error)

	// GetDecrypted returns the item's plaintext. Decryption failures
	// surface the crypto provider's sentinel unchanged.
	GetDecrypted(ctx context.Context, itemID string) ([]byte, error)

	// List returns all live items, ciphertext only.
	List(ctx context.Context) ([]models.VaultItem, error)

	// ListOwnChanges returns live items modified locally after since,
	// the candidates for the next push.
	ListOwnChanges(ctx context.Context, since time.Time) ([]models.VaultItem, error)

	// ListOwnDeletes returns locally tombstoned items not yet pushed.
	ListOwnDeletes(ctx context.Context) ([]models.VaultItem, error)

	// ApplyRemote overwrites the local record with a coordinator update.
	// An update older than the local version is ignored.
	ApplyRemote(ctx context.Context, item models.VaultItem) error

	// ApplyTombstone marks the local record deleted for a
	// coordinator-side delete, keeping the row under the tombstone's
	// version. Unknown items and stale tombstones are a no-op. A row
	// with unpushed local changes is left intact and the call returns
	// [ErrDirtyLocalItem].
	ApplyTombstone(ctx context.Context, t models.Tombstone) error

	// SoftDelete tombstones an item locally so the delete can be pushed.
	SoftDelete(ctx context.Context, itemID string) error

	// ApplyVersion records the authoritative version returned by an
	// accepted push and clears the item's locally-modified mark.
	ApplyVersion(ctx context.Context, itemID string, version int64) error

	// DropItem removes an item record entirely, used after a pushed
	// delete has been acknowledged.
	DropItem(ctx context.Context, itemID string) error

	// Watermark returns the stored last-sync watermark, zero when the
	// store has never synced.
	Watermark(ctx context.Context) (time.Time, error)

	// SetWatermark persists the coordinator-issued sync timestamp.
	// Moving the watermark backwards returns [ErrWatermarkRegression].
	SetWatermark(ctx context.Context, at time.Time) error
}
