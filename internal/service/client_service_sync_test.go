package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/internal/store"
	"github.com/vaultsync/vaultsync/models"
)

// fakeLocalStore is an in-memory store.LocalStore tracking dirty flags and
// the watermark the way the SQLite implementation does.
type fakeLocalStore struct {
	mu        sync.Mutex
	items     map[string]models.VaultItem
	dirty     map[string]bool
	deleted   map[string]models.VaultItem
	watermark time.Time

	failApply map[string]error
}

func newFakeLocalStore() *fakeLocalStore {
	return &fakeLocalStore{
		items:     make(map[string]models.VaultItem),
		dirty:     make(map[string]bool),
		deleted:   make(map[string]models.VaultItem),
		failApply: make(map[string]error),
	}
}

func (f *fakeLocalStore) Put(_ context.Context, itemID, itemType string, _ []byte) (models.VaultItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok {
		item = models.VaultItem{ID: itemID, Type: itemType, Version: 1}
	}
	f.items[itemID] = item
	f.dirty[itemID] = true
	return item, nil
}

func (f *fakeLocalStore) Get(_ context.Context, itemID string) (models.VaultItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok {
		return models.VaultItem{}, store.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeLocalStore) GetDecrypted(_ context.Context, _ string) ([]byte, error) {
	return nil, nil
}

func (f *fakeLocalStore) List(_ context.Context) ([]models.VaultItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VaultItem
	for _, item := range f.items {
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeLocalStore) ListOwnChanges(_ context.Context, _ time.Time) ([]models.VaultItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VaultItem
	for id, item := range f.items {
		if f.dirty[id] {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeLocalStore) ListOwnDeletes(_ context.Context) ([]models.VaultItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VaultItem
	for _, item := range f.deleted {
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeLocalStore) ApplyRemote(_ context.Context, item models.VaultItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failApply[item.ID]; ok {
		return err
	}
	if existing, ok := f.items[item.ID]; ok && existing.Version > item.Version {
		return nil
	}
	f.items[item.ID] = item
	f.dirty[item.ID] = false
	return nil
}

func (f *fakeLocalStore) ApplyTombstone(_ context.Context, t models.Tombstone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[t.ItemID]
	if !ok || t.Version < item.Version {
		return nil
	}
	if f.dirty[t.ItemID] {
		return fmt.Errorf("%w: %s", store.ErrDirtyLocalItem, t.ItemID)
	}
	at := t.DeletedAt
	item.Version = t.Version
	item.DeletedAt = &at
	f.items[t.ItemID] = item
	return nil
}

func (f *fakeLocalStore) SoftDelete(_ context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok {
		return store.ErrItemNotFound
	}
	delete(f.items, itemID)
	f.deleted[itemID] = item
	return nil
}

func (f *fakeLocalStore) ApplyVersion(_ context.Context, itemID string, version int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.items[itemID]; ok {
		item.Version = version
		f.items[itemID] = item
	}
	f.dirty[itemID] = false
	return nil
}

func (f *fakeLocalStore) DropItem(_ context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, itemID)
	delete(f.deleted, itemID)
	return nil
}

func (f *fakeLocalStore) Watermark(_ context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watermark, nil
}

func (f *fakeLocalStore) SetWatermark(_ context.Context, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.watermark.IsZero() && at.Before(f.watermark) {
		return store.ErrWatermarkRegression
	}
	f.watermark = at
	return nil
}

// fakeServerAdapter scripts one coordinator round-trip.
type fakeServerAdapter struct {
	mu sync.Mutex

	pullResponse models.PullResponse
	pullErr      error
	pullRequests []models.PullRequest

	pushResults  []models.PushItemResult
	pushErr      error
	pushRequests []models.PushRequest

	updateRequests []models.UpdateItemRequest
	updateResponse models.UpdateItemResponse
	updateErr      error

	deleteErr       error
	deleteResponses map[string]models.UpdateItemResponse

	token string
}

func (f *fakeServerAdapter) SetToken(token string) { f.token = token }
func (f *fakeServerAdapter) Token() string         { return f.token }

func (f *fakeServerAdapter) Pull(_ context.Context, req models.PullRequest) (models.PullResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pullRequests = append(f.pullRequests, req)
	return f.pullResponse, f.pullErr
}

func (f *fakeServerAdapter) Push(_ context.Context, req models.PushRequest) (models.PushResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushRequests = append(f.pushRequests, req)
	if f.pushErr != nil {
		return models.PushResponse{}, f.pushErr
	}
	if f.pushResults != nil {
		return models.PushResponse{Results: f.pushResults}, nil
	}
	// Default: accept everything at version+1.
	results := make([]models.PushItemResult, 0, len(req.Items))
	for _, item := range req.Items {
		results = append(results, models.PushItemResult{
			ID: item.ID, Status: models.PushStatusSuccess, Version: item.Version + 1,
		})
	}
	return models.PushResponse{Results: results}, nil
}

func (f *fakeServerAdapter) UpdateItem(_ context.Context, _ string, req models.UpdateItemRequest) (models.UpdateItemResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateRequests = append(f.updateRequests, req)
	return f.updateResponse, f.updateErr
}

func (f *fakeServerAdapter) DeleteItem(_ context.Context, itemID string, _ models.DeleteItemRequest) (models.UpdateItemResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteResponses[itemID], f.deleteErr
	}
	return f.deleteResponses[itemID], nil
}

func (f *fakeServerAdapter) RegisterDevice(_ context.Context, fingerprint string) (models.Device, error) {
	return models.Device{Fingerprint: fingerprint}, nil
}

func (f *fakeServerAdapter) SyncLog(_ context.Context, _ time.Time) ([]models.SyncLogEntry, error) {
	return nil, nil
}

func newTestClientSync(local *fakeLocalStore, srv *fakeServerAdapter, hooks Hooks) ClientSyncService {
	return NewClientSyncService(local, srv, nil, hooks, "vault-1", "device-a", logger.Nop())
}

func TestClientSync_AppliesPulledUpdatesAndAdvancesWatermark(t *testing.T) {
	local := newFakeLocalStore()
	srv := &fakeServerAdapter{
		pullResponse: models.PullResponse{
			Updates: []models.VaultItem{
				{ID: "item-1", VaultID: "vault-1", Ciphertext: "blob", Version: 3},
			},
			Deleted:   []models.Tombstone{{ItemID: "item-2", Version: 2}},
			Timestamp: 1750000000000,
		},
	}

	var applied []string
	svc := newTestClientSync(local, srv, Hooks{
		OnItemApplied: func(item models.VaultItem) { applied = append(applied, item.ID) },
	})

	status, err := svc.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, status.ItemsUpdated)
	assert.Equal(t, int64(1750000000000), status.LastSync)
	assert.Equal(t, []string{"item-1"}, applied)

	got, err := local.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)

	assert.True(t, local.watermark.Equal(models.MillisToTime(1750000000000)),
		"the coordinator's timestamp becomes the new watermark")
}

func TestClientSync_RemoteDeleteOfDirtyItemBecomesConflict(t *testing.T) {
	local := newFakeLocalStore()
	_, err := local.Put(context.Background(), "item-1", "login", []byte("edited offline"))
	require.NoError(t, err)

	srv := &fakeServerAdapter{
		pullResponse: models.PullResponse{
			Deleted: []models.Tombstone{
				{ItemID: "item-1", VaultID: "vault-1", Version: 4, DeletedAt: time.Now().UTC()},
			},
			Timestamp: 20,
		},
	}

	var notified []models.Conflict
	svc := newTestClientSync(local, srv, Hooks{
		OnConflict: func(c models.Conflict) { notified = append(notified, c) },
	})

	status, err := svc.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, status.ItemsConflicted)
	require.Len(t, notified, 1)
	assert.Equal(t, int64(4), notified[0].ServerVersion)

	got, err := local.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.False(t, got.Deleted(), "the unpushed edit survives the remote delete")
	assert.True(t, local.dirty["item-1"], "the edit stays queued for the user's decision")
}

func TestClientSync_FirstCycleRequestsFullResync(t *testing.T) {
	local := newFakeLocalStore()
	srv := &fakeServerAdapter{pullResponse: models.PullResponse{Timestamp: 1}}
	svc := newTestClientSync(local, srv, Hooks{})

	_, err := svc.Sync(context.Background())
	require.NoError(t, err)

	require.Len(t, srv.pullRequests, 1)
	assert.Zero(t, srv.pullRequests[0].LastSyncTimestamp, "a never-synced store pulls from the beginning")
}

func TestClientSync_PushesDirtyItemsAndRecordsVersions(t *testing.T) {
	local := newFakeLocalStore()
	_, err := local.Put(context.Background(), "item-1", "login", []byte("secret"))
	require.NoError(t, err)

	srv := &fakeServerAdapter{pullResponse: models.PullResponse{Timestamp: 10}}
	svc := newTestClientSync(local, srv, Hooks{})

	status, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.ItemsUpdated)

	require.Len(t, srv.pushRequests, 1)
	require.Len(t, srv.pushRequests[0].Items, 1)
	assert.Equal(t, "item-1", srv.pushRequests[0].Items[0].ID)

	assert.False(t, local.dirty["item-1"], "an accepted push clears the dirty mark")
	got, _ := local.Get(context.Background(), "item-1")
	assert.Equal(t, int64(2), got.Version)
}

func TestClientSync_NothingDirtySkipsPush(t *testing.T) {
	local := newFakeLocalStore()
	srv := &fakeServerAdapter{pullResponse: models.PullResponse{Timestamp: 10}}
	svc := newTestClientSync(local, srv, Hooks{})

	_, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, srv.pushRequests, "no push request for an empty change set")
}

func TestClientSync_ConflictIsParkedForHuman(t *testing.T) {
	local := newFakeLocalStore()
	_, err := local.Put(context.Background(), "item-1", "login", []byte("secret"))
	require.NoError(t, err)

	srv := &fakeServerAdapter{
		pullResponse: models.PullResponse{Timestamp: 10},
		pushResults: []models.PushItemResult{
			{ID: "item-1", Status: models.PushStatusConflict, ServerVersion: 5, ClientVersion: 1},
		},
	}

	var notified []models.Conflict
	svc := newTestClientSync(local, srv, Hooks{
		OnConflict: func(c models.Conflict) { notified = append(notified, c) },
	})

	status, err := svc.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, status.ItemsConflicted)
	require.Len(t, notified, 1)
	assert.Equal(t, int64(5), notified[0].ServerVersion)

	pending := svc.Conflicts()
	require.Len(t, pending, 1)
	assert.Equal(t, "item-1", pending[0].ItemID)

	assert.True(t, local.dirty["item-1"], "a conflicted item stays dirty until resolved")
}

func TestClientSync_ResolveConflictUseLocal(t *testing.T) {
	local := newFakeLocalStore()
	_, err := local.Put(context.Background(), "item-1", "login", []byte("secret"))
	require.NoError(t, err)

	srv := &fakeServerAdapter{
		pullResponse: models.PullResponse{Timestamp: 10},
		pushResults: []models.PushItemResult{
			{ID: "item-1", Status: models.PushStatusConflict, ServerVersion: 5, ClientVersion: 1},
		},
		updateResponse: models.UpdateItemResponse{ID: "item-1", Version: 6},
	}
	svc := newTestClientSync(local, srv, Hooks{})

	_, err = svc.Sync(context.Background())
	require.NoError(t, err)

	pending := svc.Conflicts()
	require.Len(t, pending, 1)

	require.NoError(t, svc.ResolveConflict(context.Background(), pending[0], models.ResolutionUseLocal))

	require.Len(t, srv.updateRequests, 1)
	assert.Equal(t, int64(5), srv.updateRequests[0].Version,
		"the forced write carries the server's version so the compare-and-increment accepts it")

	got, _ := local.Get(context.Background(), "item-1")
	assert.Equal(t, int64(6), got.Version)
	assert.Empty(t, svc.Conflicts(), "a resolved conflict leaves the pending list")
}

func TestClientSync_ResolveConflictUseServer(t *testing.T) {
	local := newFakeLocalStore()
	_, err := local.Put(context.Background(), "item-1", "login", []byte("secret"))
	require.NoError(t, err)

	serverItem := models.VaultItem{ID: "item-1", VaultID: "vault-1", Ciphertext: "server-blob", Version: 5}
	svc := newTestClientSync(local, &fakeServerAdapter{}, Hooks{})

	conflict := models.Conflict{
		ItemID: "item-1", VaultID: "vault-1",
		ClientVersion: 1, ServerVersion: 5,
		ServerItem: &serverItem,
	}

	require.NoError(t, svc.ResolveConflict(context.Background(), conflict, models.ResolutionUseServer))

	got, _ := local.Get(context.Background(), "item-1")
	assert.Equal(t, "server-blob", got.Ciphertext)
	assert.Equal(t, int64(5), got.Version)
}

func TestClientSync_PullFailureLeavesWatermarkUntouched(t *testing.T) {
	local := newFakeLocalStore()
	local.watermark = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	srv := &fakeServerAdapter{pullErr: errors.New("network down")}
	svc := newTestClientSync(local, srv, Hooks{})

	status, err := svc.Sync(context.Background())
	require.Error(t, err)
	require.NotEmpty(t, status.Errors)

	assert.True(t, local.watermark.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
		"a failed cycle must not move the watermark")
}

func TestClientSync_PushFailureLeavesWatermarkUntouched(t *testing.T) {
	local := newFakeLocalStore()
	before := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	local.watermark = before
	_, err := local.Put(context.Background(), "item-1", "login", []byte("secret"))
	require.NoError(t, err)

	srv := &fakeServerAdapter{
		pullResponse: models.PullResponse{Timestamp: models.TimeToMillis(before.Add(time.Hour))},
		pushErr:      errors.New("network down"),
	}
	svc := newTestClientSync(local, srv, Hooks{})

	status, err := svc.Sync(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, status.Errors)

	assert.True(t, local.watermark.Equal(before), "a failed push batch must not advance the watermark")
	assert.True(t, local.dirty["item-1"], "the unpushed item stays queued for the next cycle")
}

func TestClientSync_ApplyErrorDoesNotAbortCycle(t *testing.T) {
	local := newFakeLocalStore()
	local.failApply["broken"] = errors.New("corrupt row")

	srv := &fakeServerAdapter{
		pullResponse: models.PullResponse{
			Updates: []models.VaultItem{
				{ID: "broken", Version: 1},
				{ID: "fine", Version: 1},
			},
			Timestamp: 10,
		},
	}
	svc := newTestClientSync(local, srv, Hooks{})

	status, err := svc.Sync(context.Background())
	require.NoError(t, err, "per-item apply failures must not fail the cycle")

	assert.Equal(t, 1, status.ItemsUpdated)
	require.Len(t, status.Errors, 1)
	assert.Contains(t, status.Errors[0], "broken")

	_, err = local.Get(context.Background(), "fine")
	assert.NoError(t, err)
}

func TestClientSync_ReentranceIsNoOp(t *testing.T) {
	local := newFakeLocalStore()
	srv := &fakeServerAdapter{pullResponse: models.PullResponse{Timestamp: 10}}

	var svc ClientSyncService
	var nested models.SyncStatus
	svc = newTestClientSync(local, srv, Hooks{
		OnSyncStart: func() {
			// Re-enter while the flag is held: must not start a second cycle.
			nested, _ = svc.Sync(context.Background())
		},
	})

	_, err := svc.Sync(context.Background())
	require.NoError(t, err)

	assert.True(t, nested.IsSyncing, "the nested call observes the running cycle and backs off")
	require.Len(t, srv.pullRequests, 1, "exactly one pull for one logical cycle")
}

func TestClientSync_PushesLocalDeletes(t *testing.T) {
	local := newFakeLocalStore()
	_, err := local.Put(context.Background(), "item-1", "login", []byte("secret"))
	require.NoError(t, err)
	require.NoError(t, local.ApplyVersion(context.Background(), "item-1", 2))
	require.NoError(t, local.SoftDelete(context.Background(), "item-1"))

	srv := &fakeServerAdapter{
		pullResponse:    models.PullResponse{Timestamp: 10},
		deleteResponses: map[string]models.UpdateItemResponse{"item-1": {ID: "item-1", Version: 3}},
	}
	svc := newTestClientSync(local, srv, Hooks{})

	status, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.ItemsUpdated)

	deletes, err := local.ListOwnDeletes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, deletes, "an acknowledged delete drops the local row")
}
