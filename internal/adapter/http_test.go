package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultsync/vaultsync/internal/config"
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/models"
)

func newTestAdapter(t *testing.T, handler http.Handler) ServerAdapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := NewHTTPServerAdapter(config.ClientAdapter{
		ServerURL:      srv.URL,
		Token:          "test-token",
		RequestTimeout: 5 * time.Second,
	}, logger.Nop())
	require.NoError(t, err)

	return a
}

func TestNewHTTPServerAdapter_InvalidURL(t *testing.T) {
	_, err := NewHTTPServerAdapter(config.ClientAdapter{ServerURL: ""}, logger.Nop())
	require.Error(t, err)
}

func TestPull_SendsWatermarkAndBearerToken(t *testing.T) {
	var gotAuth string
	var gotReq models.PullRequest

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sync/pull", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := models.PullResponse{
			Updates:   []models.VaultItem{{ID: "item-1", VaultID: "vault-1", Version: 2}},
			Deleted:   []models.Tombstone{{ItemID: "item-2", Version: 3}},
			Timestamp: 1750000000000,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	a := newTestAdapter(t, mux)

	resp, err := a.Pull(context.Background(), models.PullRequest{
		VaultID:           "vault-1",
		LastSyncTimestamp: 1749000000000,
		DeviceID:          "device-a",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "vault-1", gotReq.VaultID)
	assert.Equal(t, int64(1749000000000), gotReq.LastSyncTimestamp)

	require.Len(t, resp.Updates, 1)
	require.Len(t, resp.Deleted, 1)
	assert.Equal(t, int64(1750000000000), resp.Timestamp)
}

func TestPush_DecodesPerItemResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sync/push", func(w http.ResponseWriter, r *http.Request) {
		resp := models.PushResponse{Results: []models.PushItemResult{
			{ID: "item-1", Status: models.PushStatusSuccess, Version: 2},
			{ID: "item-2", Status: models.PushStatusConflict, ServerVersion: 5, ClientVersion: 3},
		}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	a := newTestAdapter(t, mux)

	resp, err := a.Push(context.Background(), models.PushRequest{
		VaultID:  "vault-1",
		DeviceID: "device-a",
		Items:    []models.PushItem{{ID: "item-1"}, {ID: "item-2"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, models.PushStatusSuccess, resp.Results[0].Status)
	assert.Equal(t, models.PushStatusConflict, resp.Results[1].Status)
	assert.Equal(t, int64(5), resp.Results[1].ServerVersion)
}

func TestPush_Unauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sync/push", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	})

	a := newTestAdapter(t, mux)

	_, err := a.Push(context.Background(), models.PushRequest{VaultID: "vault-1"})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateItem_ConflictCarriesServerVersion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/items/item-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(models.VersionConflictResponse{
			Error:           "version conflict",
			CurrentVersion:  7,
			ProvidedVersion: 3,
		})
	})

	a := newTestAdapter(t, mux)

	resp, err := a.UpdateItem(context.Background(), "item-1", models.UpdateItemRequest{
		VaultID: "vault-1",
		Version: 3,
	})
	require.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, int64(7), resp.Version, "conflict response must surface the coordinator's version")
}

func TestDeleteItem_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/items/item-1", func(w http.ResponseWriter, r *http.Request) {
		var req models.DeleteItemRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(2), req.Version)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.UpdateItemResponse{ID: "item-1", Version: 3})
	})

	a := newTestAdapter(t, mux)

	resp, err := a.DeleteItem(context.Background(), "item-1", models.DeleteItemRequest{
		VaultID: "vault-1",
		Version: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Version)
}

func TestRegisterDevice_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/devices/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "fp-123", body["fingerprint"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.Device{Fingerprint: "fp-123", UserID: 42})
	})

	a := newTestAdapter(t, mux)

	device, err := a.RegisterDevice(context.Background(), "fp-123")
	require.NoError(t, err)
	assert.Equal(t, int64(42), device.UserID)
}

func TestSyncLog_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sync/log", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("since"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]models.SyncLogEntry{
			{ID: 1, ItemID: "item-1", Action: models.SyncActionCreate, Version: 1},
		})
	})

	a := newTestAdapter(t, mux)

	entries, err := a.SyncLog(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.SyncActionCreate, entries[0].Action)
}

func TestSetToken_ReplacesToken(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sync/pull", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(models.PullResponse{})
	})

	a := newTestAdapter(t, mux)
	a.SetToken("  rotated-token  ")

	_, err := a.Pull(context.Background(), models.PullRequest{VaultID: "vault-1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer rotated-token", gotAuth)
}
