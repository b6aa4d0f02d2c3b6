// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/internal/store"
	"github.com/vaultsync/vaultsync/internal/utils"
	"github.com/vaultsync/vaultsync/models"
)

// updateItem handles a single out-of-cycle item write. A stale client
// version answers 409 with the coordinator's current version in the body
// so the client can resolve without another round trip.
func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		log.Error().Str("func", "*Handler.updateItem").Msg("no user ID was given")
		http.Error(w, "no user ID was given", http.StatusUnauthorized)
		return
	}

	itemID := chi.URLParam(r, "id")

	var updateRequest models.UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		log.Err(err).Str("func", "*Handler.updateItem").Msg("invalid JSON was passed")
		http.Error(w, "invalid JSON was passed", http.StatusBadRequest)
		return
	}

	response, err := h.services.SyncService.UpdateItem(ctx, userID, itemID, updateRequest)
	if errors.Is(err, store.ErrVersionConflict) {
		writeVersionConflict(w, response.Version, updateRequest.Version)
		return
	}
	if err != nil {
		log.Err(err).Str("func", "*Handler.updateItem").Msg("error updating item")
		http.Error(w, "error updating item", statusFromError(err))
		return
	}

	utils.WriteJSON(w, response, http.StatusOK)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		log.Error().Str("func", "*Handler.deleteItem").Msg("no user ID was given")
		http.Error(w, "no user ID was given", http.StatusUnauthorized)
		return
	}

	itemID := chi.URLParam(r, "id")

	var deleteRequest models.DeleteItemRequest
	if err := json.NewDecoder(r.Body).Decode(&deleteRequest); err != nil {
		log.Err(err).Str("func", "*Handler.deleteItem").Msg("invalid JSON was passed")
		http.Error(w, "invalid JSON was passed", http.StatusBadRequest)
		return
	}

	response, err := h.services.SyncService.DeleteItem(
		ctx, userID, deleteRequest.VaultID, itemID, deleteRequest.Version, deleteRequest.DeviceID)
	if errors.Is(err, store.ErrVersionConflict) {
		writeVersionConflict(w, response.Version, deleteRequest.Version)
		return
	}
	if err != nil {
		log.Err(err).Str("func", "*Handler.deleteItem").Msg("error deleting item")
		http.Error(w, "error deleting item", statusFromError(err))
		return
	}

	utils.WriteJSON(w, response, http.StatusOK)
}

func writeVersionConflict(w http.ResponseWriter, currentVersion, providedVersion int64) {
	utils.WriteJSON(w, models.VersionConflictResponse{
		Error:           store.ErrVersionConflict.Error(),
		CurrentVersion:  currentVersion,
		ProvidedVersion: providedVersion,
	}, http.StatusConflict)
}
