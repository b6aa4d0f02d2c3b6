// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

// Package adapter provides transport-layer abstractions for communicating
// with the sync coordinator.
//
// The primary abstraction is [ServerAdapter], which decouples the client
// sync engine from the underlying protocol. The package ships an HTTP/REST
// implementation ([NewHTTPServerAdapter]); the realtime channel lives in
// the realtime package and shares the same sentinel errors.
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic
// error handling (e.g. [ErrVersionConflict] for 409, [ErrUnauthorized]
// for 401).
package adapter

import (
	"context"
	"time"

	"github.com/vaultsync/vaultsync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/server_adapter_mock.go -package=mock

// ServerAdapter defines transport-agnostic communication with the sync
// coordinator. Implementations are responsible for serialisation, bearer
// token management, and mapping transport-level errors to the sentinel
// values defined in this package.
type ServerAdapter interface {
	// SetToken stores the bearer token that will be attached to all
	// subsequent authenticated requests.
	SetToken(token string)

	// Token returns the bearer token currently stored in the adapter, or
	// an empty string if none has been set.
	Token() string

	// Pull asks the coordinator for every change in the vault after the
	// client's watermark.
	Pull(ctx context.Context, req models.PullRequest) (models.PullResponse, error)

	// Push uploads a batch of local changes. The per-item results in the
	// response must be inspected individually; the call itself only
	// errors on transport or authorization failures.
	Push(ctx context.Context, req models.PushRequest) (models.PushResponse, error)

	// UpdateItem performs a direct single-item write with an explicit
	// expected version. Returns [ErrVersionConflict] (wrapped) when the
	// coordinator holds a newer version.
	UpdateItem(ctx context.Context, itemID string, req models.UpdateItemRequest) (models.UpdateItemResponse, error)

	// DeleteItem tombstones one item on the coordinator. Returns
	// [ErrVersionConflict] (wrapped) on a stale version.
	DeleteItem(ctx context.Context, itemID string, req models.DeleteItemRequest) (models.UpdateItemResponse, error)

	// RegisterDevice announces this device's fingerprint to the
	// coordinator so its writes can be attributed and excluded from its
	// own pulls.
	RegisterDevice(ctx context.Context, fingerprint string) (models.Device, error)

	// SyncLog fetches the user's audit trail of accepted writes since T.
	SyncLog(ctx context.Context, since time.Time) ([]models.SyncLogEntry, error)
}
