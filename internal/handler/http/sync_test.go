package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/internal/service"
	"github.com/vaultsync/vaultsync/internal/store"
	"github.com/vaultsync/vaultsync/internal/utils"
	"github.com/vaultsync/vaultsync/models"
)

type mockSyncService struct {
	pullFn       func(ctx context.Context, userID int64, req models.PullRequest) (models.PullResponse, error)
	pushFn       func(ctx context.Context, userID int64, req models.PushRequest) (models.PushResponse, error)
	updateItemFn func(ctx context.Context, userID int64, itemID string, req models.UpdateItemRequest) (models.UpdateItemResponse, error)
	deleteItemFn func(ctx context.Context, userID int64, vaultID, itemID string, version int64, deviceID string) (models.UpdateItemResponse, error)
	historyFn    func(ctx context.Context, userID int64, since time.Time) ([]models.SyncLogEntry, error)
}

func (m *mockSyncService) Pull(ctx context.Context, userID int64, req models.PullRequest) (models.PullResponse, error) {
	return m.pullFn(ctx, userID, req)
}
func (m *mockSyncService) Push(ctx context.Context, userID int64, req models.PushRequest) (models.PushResponse, error) {
	return m.pushFn(ctx, userID, req)
}
func (m *mockSyncService) UpdateItem(ctx context.Context, userID int64, itemID string, req models.UpdateItemRequest) (models.UpdateItemResponse, error) {
	return m.updateItemFn(ctx, userID, itemID, req)
}
func (m *mockSyncService) DeleteItem(ctx context.Context, userID int64, vaultID, itemID string, version int64, deviceID string) (models.UpdateItemResponse, error) {
	return m.deleteItemFn(ctx, userID, vaultID, itemID, version, deviceID)
}
func (m *mockSyncService) History(ctx context.Context, userID int64, since time.Time) ([]models.SyncLogEntry, error) {
	return m.historyFn(ctx, userID, since)
}

func newHandlerWithSyncService(ss service.SyncService) *Handler {
	return &Handler{
		services: &service.Services{
			SyncService: ss,
		},
		logger: logger.Nop(),
	}
}

func withUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, utils.UserIDCtxKey, userID)
}

func TestPull_Success(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()

	expected := models.PullResponse{
		Updates: []models.VaultItem{
			{ID: "item-1", VaultID: "vault-1", Version: 3, Ciphertext: "c1phert3xt"},
		},
		Deleted:   []models.Tombstone{{ItemID: "item-2", Version: 2}},
		Timestamp: models.TimeToMillis(now),
	}

	var gotUserID int64
	var gotReq models.PullRequest
	h := newHandlerWithSyncService(&mockSyncService{
		pullFn: func(ctx context.Context, userID int64, req models.PullRequest) (models.PullResponse, error) {
			gotUserID = userID
			gotReq = req
			return expected, nil
		},
	})

	body, _ := json.Marshal(models.PullRequest{
		VaultID:           "vault-1",
		LastSyncTimestamp: 12345,
		DeviceID:          "device-a",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/sync/pull", bytes.NewReader(body))
	req = req.WithContext(withUserID(req.Context(), 42))
	w := httptest.NewRecorder()

	h.pull(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUserID != 42 {
		t.Errorf("userID = %d, want 42", gotUserID)
	}
	if gotReq.DeviceID != "device-a" || gotReq.LastSyncTimestamp != 12345 {
		t.Errorf("unexpected pull request forwarded: %+v", gotReq)
	}

	var got models.PullResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Timestamp != expected.Timestamp || len(got.Updates) != 1 || len(got.Deleted) != 1 {
		t.Errorf("response = %+v, want %+v", got, expected)
	}
}

func TestPull_NoUserID(t *testing.T) {
	h := newHandlerWithSyncService(&mockSyncService{})

	req := httptest.NewRequest(http.MethodPost, "/api/sync/pull", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	h.pull(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestPull_UnknownVault(t *testing.T) {
	h := newHandlerWithSyncService(&mockSyncService{
		pullFn: func(ctx context.Context, userID int64, req models.PullRequest) (models.PullResponse, error) {
			return models.PullResponse{}, store.ErrVaultNotFound
		},
	})

	body, _ := json.Marshal(models.PullRequest{VaultID: "nope", DeviceID: "device-a"})
	req := httptest.NewRequest(http.MethodPost, "/api/sync/pull", bytes.NewReader(body))
	req = req.WithContext(withUserID(req.Context(), 42))
	w := httptest.NewRecorder()

	h.pull(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestPull_ForeignVaultHiddenAsNotFound(t *testing.T) {
	h := newHandlerWithSyncService(&mockSyncService{
		pullFn: func(ctx context.Context, userID int64, req models.PullRequest) (models.PullResponse, error) {
			return models.PullResponse{}, service.ErrVaultAccessDenied
		},
	})

	body, _ := json.Marshal(models.PullRequest{VaultID: "vault-2", DeviceID: "device-a"})
	req := httptest.NewRequest(http.MethodPost, "/api/sync/pull", bytes.NewReader(body))
	req = req.WithContext(withUserID(req.Context(), 42))
	w := httptest.NewRecorder()

	h.pull(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d: foreign vaults must look missing", w.Code, http.StatusNotFound)
	}
}

func TestPush_Success(t *testing.T) {
	expected := models.PushResponse{
		Results: []models.PushItemResult{
			{ID: "item-1", Status: models.PushStatusSuccess, Version: 2},
			{ID: "item-2", Status: models.PushStatusConflict, ServerVersion: 5, ClientVersion: 3},
		},
	}

	h := newHandlerWithSyncService(&mockSyncService{
		pushFn: func(ctx context.Context, userID int64, req models.PushRequest) (models.PushResponse, error) {
			return expected, nil
		},
	})

	body, _ := json.Marshal(models.PushRequest{
		VaultID:  "vault-1",
		DeviceID: "device-a",
		Items:    []models.PushItem{{ID: "item-1", Version: 1}, {ID: "item-2", Version: 3}},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/sync/push", bytes.NewReader(body))
	req = req.WithContext(withUserID(req.Context(), 42))
	w := httptest.NewRecorder()

	h.push(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var got models.PushResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("response = %+v, want %+v", got, expected)
	}
}

func TestPush_InvalidJSON(t *testing.T) {
	h := newHandlerWithSyncService(&mockSyncService{})

	req := httptest.NewRequest(http.MethodPost, "/api/sync/push", bytes.NewReader([]byte(`{not json`)))
	req = req.WithContext(withUserID(req.Context(), 42))
	w := httptest.NewRecorder()

	h.push(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestPush_EmptyBatchRejected(t *testing.T) {
	h := newHandlerWithSyncService(&mockSyncService{
		pushFn: func(ctx context.Context, userID int64, req models.PushRequest) (models.PushResponse, error) {
			return models.PushResponse{}, service.ErrInvalidDataProvided
		},
	})

	body, _ := json.Marshal(models.PushRequest{VaultID: "vault-1", DeviceID: "device-a"})
	req := httptest.NewRequest(http.MethodPost, "/api/sync/push", bytes.NewReader(body))
	req = req.WithContext(withUserID(req.Context(), 42))
	w := httptest.NewRecorder()

	h.push(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSyncLog_Success(t *testing.T) {
	entries := []models.SyncLogEntry{
		{ID: 1, UserID: 42, DeviceID: "device-a", VaultID: "vault-1", ItemID: "item-1", Action: models.SyncActionUpdate, Version: 2},
	}

	var gotSince time.Time
	h := newHandlerWithSyncService(&mockSyncService{
		historyFn: func(ctx context.Context, userID int64, since time.Time) ([]models.SyncLogEntry, error) {
			gotSince = since
			return entries, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/sync/log?since=1700000000000", nil)
	req = req.WithContext(withUserID(req.Context(), 42))
	w := httptest.NewRecorder()

	h.syncLog(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if want := models.MillisToTime(1700000000000); !gotSince.Equal(want) {
		t.Errorf("since = %v, want %v", gotSince, want)
	}

	var got []models.SyncLogEntry
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 1 || got[0].ItemID != "item-1" {
		t.Errorf("entries = %+v, want %+v", got, entries)
	}
}

func TestSyncLog_NoSinceMeansFullTrail(t *testing.T) {
	var gotSince time.Time
	h := newHandlerWithSyncService(&mockSyncService{
		historyFn: func(ctx context.Context, userID int64, since time.Time) ([]models.SyncLogEntry, error) {
			gotSince = since
			return nil, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/sync/log", nil)
	req = req.WithContext(withUserID(req.Context(), 42))
	w := httptest.NewRecorder()

	h.syncLog(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !gotSince.IsZero() {
		t.Errorf("since = %v, want zero time", gotSince)
	}

	// An empty trail is an empty JSON array, never null.
	if body := w.Body.String(); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestSyncLog_BadSince(t *testing.T) {
	h := newHandlerWithSyncService(&mockSyncService{})

	req := httptest.NewRequest(http.MethodGet, "/api/sync/log?since=yesterday", nil)
	req = req.WithContext(withUserID(req.Context(), 42))
	w := httptest.NewRecorder()

	h.syncLog(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSyncLog_ServiceError(t *testing.T) {
	h := newHandlerWithSyncService(&mockSyncService{
		historyFn: func(ctx context.Context, userID int64, since time.Time) ([]models.SyncLogEntry, error) {
			return nil, errors.New("database is on fire")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/sync/log", nil)
	req = req.WithContext(withUserID(req.Context(), 42))
	w := httptest.NewRecorder()

	h.syncLog(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
