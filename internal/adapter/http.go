package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vaultsync/vaultsync/internal/config"
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/models"
)

type httpServerAdapter struct {
	client *resty.Client

	mu    sync.RWMutex
	token string

	logger *logger.Logger
}

// NewHTTPServerAdapter constructs an HTTP/REST implementation of
// [ServerAdapter]. It normalises and validates the base URL from
// cfg.ServerURL and configures the underlying client with the resolved
// base URL and request timeout.
//
// Returns an error if cfg.ServerURL is empty or cannot be parsed as a
// valid URL.
func NewHTTPServerAdapter(cfg config.ClientAdapter, logger *logger.Logger) (ServerAdapter, error) {
	baseURL, err := normalizeBaseURL(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter server url: %w", err)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.RequestTimeout)

	return &httpServerAdapter{
		client: client,
		token:  strings.TrimSpace(cfg.Token),
		logger: logger,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// SetToken implements [ServerAdapter]. It stores token (whitespace-trimmed)
// for use in the Authorization header of all subsequent requests.
func (h *httpServerAdapter) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

// Token implements [ServerAdapter].
func (h *httpServerAdapter) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Pull implements [ServerAdapter]. It POSTs the watermark to
// POST /api/sync/pull and decodes the change window. Requires a valid
// bearer token.
func (h *httpServerAdapter) Pull(ctx context.Context, req models.PullRequest) (models.PullResponse, error) {
	var pullResponse models.PullResponse

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&pullResponse).
		Post("/api/sync/pull")
	if err != nil {
		return models.PullResponse{}, fmt.Errorf("pull request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.PullResponse{}, err
	}

	return pullResponse, nil
}

// Push implements [ServerAdapter]. It POSTs the batch to
// POST /api/sync/push. The HTTP status covers only the batch itself;
// per-item conflicts and errors ride in the decoded results. Requires a
// valid bearer token.
func (h *httpServerAdapter) Push(ctx context.Context, req models.PushRequest) (models.PushResponse, error) {
	var pushResponse models.PushResponse

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&pushResponse).
		Post("/api/sync/push")
	if err != nil {
		return models.PushResponse{}, fmt.Errorf("push request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.PushResponse{}, err
	}

	return pushResponse, nil
}

// UpdateItem implements [ServerAdapter]. It PUTs the write to
// PUT /api/items/{id}. On HTTP 409 the coordinator's current version is
// extracted from the conflict body and returned alongside the wrapped
// [ErrVersionConflict].
func (h *httpServerAdapter) UpdateItem(ctx context.Context, itemID string, req models.UpdateItemRequest) (models.UpdateItemResponse, error) {
	var updateResponse models.UpdateItemResponse

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&updateResponse).
		Put("/api/items/" + url.PathEscape(itemID))
	if err != nil {
		return models.UpdateItemResponse{}, fmt.Errorf("update item request: %w", err)
	}
	if mapped := mapHTTPError(resp); mapped != nil {
		return conflictVersion(itemID, resp), mapped
	}

	return updateResponse, nil
}

// DeleteItem implements [ServerAdapter]. It sends the tombstone request to
// DELETE /api/items/{id} with the expected version in the body.
func (h *httpServerAdapter) DeleteItem(ctx context.Context, itemID string, req models.DeleteItemRequest) (models.UpdateItemResponse, error) {
	var deleteResponse models.UpdateItemResponse

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&deleteResponse).
		Delete("/api/items/" + url.PathEscape(itemID))
	if err != nil {
		return models.UpdateItemResponse{}, fmt.Errorf("delete item request: %w", err)
	}
	if mapped := mapHTTPError(resp); mapped != nil {
		return conflictVersion(itemID, resp), mapped
	}

	return deleteResponse, nil
}

// RegisterDevice implements [ServerAdapter]. It POSTs the fingerprint to
// POST /api/devices/register.
func (h *httpServerAdapter) RegisterDevice(ctx context.Context, fingerprint string) (models.Device, error) {
	var device models.Device

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"fingerprint": fingerprint}).
		SetResult(&device).
		Post("/api/devices/register")
	if err != nil {
		return models.Device{}, fmt.Errorf("register device request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.Device{}, err
	}

	return device, nil
}

// SyncLog implements [ServerAdapter]. It GETs GET /api/sync/log with the
// watermark as a query parameter.
func (h *httpServerAdapter) SyncLog(ctx context.Context, since time.Time) ([]models.SyncLogEntry, error) {
	resp, err := h.authedRequest(ctx).
		SetQueryParam("since", strconv.FormatInt(models.TimeToMillis(since), 10)).
		Get("/api/sync/log")
	if err != nil {
		return nil, fmt.Errorf("sync log request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	var entries []models.SyncLogEntry
	if err = json.Unmarshal(resp.Body(), &entries); err != nil {
		return nil, fmt.Errorf("decode sync log response: %w", err)
	}

	return entries, nil
}

func (h *httpServerAdapter) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if token := h.Token(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

// conflictVersion decodes the 409 body so callers learn the coordinator's
// current version without a second request. Any other body decodes to the
// zero response.
func conflictVersion(itemID string, resp *resty.Response) models.UpdateItemResponse {
	var conflict models.VersionConflictResponse
	if err := json.Unmarshal(resp.Body(), &conflict); err != nil {
		return models.UpdateItemResponse{}
	}
	return models.UpdateItemResponse{ID: itemID, Version: conflict.CurrentVersion}
}
