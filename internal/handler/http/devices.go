package http

import (
	"encoding/json"
	"net/http"

	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/internal/utils"
)

type registerDeviceRequest struct {
	Fingerprint string `json:"fingerprint"`
}

type createVaultRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) registerDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		log.Error().Str("func", "*Handler.registerDevice").Msg("no user ID was given")
		http.Error(w, "no user ID was given", http.StatusUnauthorized)
		return
	}

	var registerRequest registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&registerRequest); err != nil {
		log.Err(err).Str("func", "*Handler.registerDevice").Msg("invalid JSON was passed")
		http.Error(w, "invalid JSON was passed", http.StatusBadRequest)
		return
	}

	device, err := h.services.AuthService.RegisterDevice(ctx, userID, registerRequest.Fingerprint)
	if err != nil {
		log.Err(err).Str("func", "*Handler.registerDevice").Msg("error registering device")
		http.Error(w, "error registering device", statusFromError(err))
		return
	}

	utils.WriteJSON(w, device, http.StatusOK)
}

// createVault provisions a vault for the authenticated user. The ID is
// optional; the service assigns one when it is absent.
func (h *Handler) createVault(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		log.Error().Str("func", "*Handler.createVault").Msg("no user ID was given")
		http.Error(w, "no user ID was given", http.StatusUnauthorized)
		return
	}

	var createRequest createVaultRequest
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		log.Err(err).Str("func", "*Handler.createVault").Msg("invalid JSON was passed")
		http.Error(w, "invalid JSON was passed", http.StatusBadRequest)
		return
	}

	vault, err := h.services.AuthService.CreateVault(ctx, userID, createRequest.ID, createRequest.Name)
	if err != nil {
		log.Err(err).Str("func", "*Handler.createVault").Msg("error creating vault")
		http.Error(w, "error creating vault", statusFromError(err))
		return
	}

	utils.WriteJSON(w, vault, http.StatusCreated)
}
