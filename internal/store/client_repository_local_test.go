package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vaultsync/vaultsync/internal/config"
	"github.com/vaultsync/vaultsync/internal/crypto"
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/models"
)

func newTestLocalStore(t *testing.T) LocalStore {
	t.Helper()

	ctx := context.Background()
	l := logger.Nop()

	db, err := NewConnectSQLite(ctx, config.ClientStorage{LocalDBPath: ":memory:"}, l)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	provider := crypto.NewProvider()
	key := provider.DeriveKey("test-passphrase", []byte("0123456789abcdef"))

	return NewLocalStore(db, provider, key, "vault-1", "device-a", l)
}

func TestLocalStore_PutThenGetDecrypted(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	secret := []byte(`{"login":"john","password":"hunter2"}`)

	item, err := store.Put(ctx, "item-1", "login", secret)
	require.NoError(t, err)
	require.Equal(t, int64(1), item.Version, "new items start at version 1")
	require.NotContains(t, item.Ciphertext, "hunter2", "ciphertext must not leak plaintext")

	plaintext, err := store.GetDecrypted(ctx, "item-1")
	require.NoError(t, err)
	require.Equal(t, secret, plaintext)
}

func TestLocalStore_PutExistingKeepsVersion(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "item-1", "login", []byte("v1 payload"))
	require.NoError(t, err)

	// Coordinator accepted the first push at version 4.
	require.NoError(t, store.ApplyVersion(ctx, "item-1", 4))

	updated, err := store.Put(ctx, "item-1", "login", []byte("v2 payload"))
	require.NoError(t, err)
	require.Equal(t, int64(4), updated.Version, "local edits must not advance the version counter")
}

func TestLocalStore_GetMissing(t *testing.T) {
	store := newTestLocalStore(t)

	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestLocalStore_ListOwnChanges(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "item-1", "login", []byte("payload"))
	require.NoError(t, err)

	changes, err := store.ListOwnChanges(ctx, time.Time{}.Add(time.Nanosecond))
	require.NoError(t, err)
	require.Len(t, changes, 1)

	// An accepted push clears the dirty mark.
	require.NoError(t, store.ApplyVersion(ctx, "item-1", 1))

	changes, err = store.ListOwnChanges(ctx, time.Time{}.Add(time.Nanosecond))
	require.NoError(t, err)
	require.Empty(t, changes)
}

func TestLocalStore_ApplyRemoteIgnoresOlderVersion(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	newer := models.VaultItem{
		ID: "item-1", VaultID: "vault-1", Type: "login",
		Ciphertext: "newer-blob", Version: 5, LastModifiedBy: "device-b",
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.ApplyRemote(ctx, newer))

	older := newer
	older.Ciphertext = "older-blob"
	older.Version = 3
	require.NoError(t, store.ApplyRemote(ctx, older))

	got, err := store.Get(ctx, "item-1")
	require.NoError(t, err)
	require.Equal(t, int64(5), got.Version)
	require.Equal(t, "newer-blob", got.Ciphertext, "older remote update must not clobber newer local state")
}

func TestLocalStore_SoftDeleteThenListOwnDeletes(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "item-1", "login", []byte("payload"))
	require.NoError(t, err)

	require.NoError(t, store.SoftDelete(ctx, "item-1"))

	live, err := store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, live, "tombstoned items leave the live listing")

	deletes, err := store.ListOwnDeletes(ctx)
	require.NoError(t, err)
	require.Len(t, deletes, 1)
	require.Equal(t, "item-1", deletes[0].ID)
}

func TestLocalStore_SoftDeleteMissing(t *testing.T) {
	store := newTestLocalStore(t)

	err := store.SoftDelete(context.Background(), "missing")
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestLocalStore_ApplyTombstone(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "item-1", "login", []byte("payload"))
	require.NoError(t, err)
	// Push was accepted, so the row is clean at version 1.
	require.NoError(t, store.ApplyVersion(ctx, "item-1", 1))

	deletedAt := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.ApplyTombstone(ctx, models.Tombstone{
		ItemID: "item-1", VaultID: "vault-1", Version: 2, DeletedAt: deletedAt,
	}))

	got, err := store.Get(ctx, "item-1")
	require.NoError(t, err)
	require.True(t, got.Deleted(), "the row survives as a tombstone, not a hard delete")
	require.Equal(t, int64(2), got.Version)

	live, err := store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, live)

	own, err := store.ListOwnDeletes(ctx)
	require.NoError(t, err)
	require.Empty(t, own, "a remote delete must not be queued for push")

	// Tombstones for unknown items are a no-op.
	require.NoError(t, store.ApplyTombstone(ctx, models.Tombstone{ItemID: "never-seen"}))
}

func TestLocalStore_ApplyTombstoneDirtyItemConflicts(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "item-1", "login", []byte("unpushed edit"))
	require.NoError(t, err)

	err = store.ApplyTombstone(ctx, models.Tombstone{
		ItemID: "item-1", VaultID: "vault-1", Version: 5, DeletedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, ErrDirtyLocalItem)

	plaintext, err := store.GetDecrypted(ctx, "item-1")
	require.NoError(t, err)
	require.Equal(t, []byte("unpushed edit"), plaintext, "the edit must survive the remote delete")
}

func TestLocalStore_ApplyTombstoneIgnoresStaleVersion(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "item-1", "login", []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, store.ApplyVersion(ctx, "item-1", 7))

	require.NoError(t, store.ApplyTombstone(ctx, models.Tombstone{
		ItemID: "item-1", Version: 3, DeletedAt: time.Now().UTC(),
	}))

	got, err := store.Get(ctx, "item-1")
	require.NoError(t, err)
	require.False(t, got.Deleted(), "an old tombstone cannot erase newer state")
	require.Equal(t, int64(7), got.Version)
}

func TestLocalStore_WatermarkRoundTrip(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	at, err := store.Watermark(ctx)
	require.NoError(t, err)
	require.True(t, at.IsZero(), "fresh store has no watermark")

	stamp := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetWatermark(ctx, stamp))

	at, err = store.Watermark(ctx)
	require.NoError(t, err)
	require.True(t, stamp.Equal(at))
}

func TestLocalStore_WatermarkRefusesRegression(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	stamp := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetWatermark(ctx, stamp))

	err := store.SetWatermark(ctx, stamp.Add(-time.Hour))
	require.ErrorIs(t, err, ErrWatermarkRegression)

	// The stored watermark is untouched.
	at, err := store.Watermark(ctx)
	require.NoError(t, err)
	require.True(t, stamp.Equal(at))
}
