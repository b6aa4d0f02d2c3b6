package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/internal/utils"
	"github.com/vaultsync/vaultsync/models"
)

func (h *Handler) pull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		log.Error().Str("func", "*Handler.pull").Msg("no user ID was given")
		http.Error(w, "no user ID was given", http.StatusUnauthorized)
		return
	}

	var pullRequest models.PullRequest
	if err := json.NewDecoder(r.Body).Decode(&pullRequest); err != nil {
		log.Err(err).Str("func", "*Handler.pull").Msg("invalid JSON was passed")
		http.Error(w, "invalid JSON was passed", http.StatusBadRequest)
		return
	}

	window, err := h.services.SyncService.Pull(ctx, userID, pullRequest)
	if err != nil {
		log.Err(err).Str("func", "*Handler.pull").Msg("error computing pull window")
		http.Error(w, "error computing pull window", statusFromError(err))
		return
	}

	utils.WriteJSON(w, window, http.StatusOK)
}

func (h *Handler) push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		log.Error().Str("func", "*Handler.push").Msg("no user ID was given")
		http.Error(w, "no user ID was given", http.StatusUnauthorized)
		return
	}

	var pushRequest models.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&pushRequest); err != nil {
		log.Err(err).Str("func", "*Handler.push").Msg("invalid JSON was passed")
		http.Error(w, "invalid JSON was passed", http.StatusBadRequest)
		return
	}

	results, err := h.services.SyncService.Push(ctx, userID, pushRequest)
	if err != nil {
		log.Err(err).Str("func", "*Handler.push").Msg("error applying pushed changes")
		http.Error(w, "error applying pushed changes", statusFromError(err))
		return
	}

	utils.WriteJSON(w, results, http.StatusOK)
}

// syncLog serves the audit trail. The "since" query parameter carries the
// watermark in Unix milliseconds; when absent the full trail is returned.
func (h *Handler) syncLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		log.Error().Str("func", "*Handler.syncLog").Msg("no user ID was given")
		http.Error(w, "no user ID was given", http.StatusUnauthorized)
		return
	}

	var sinceMillis int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Err(err).Str("func", "*Handler.syncLog").Msg("invalid `since` query parameter")
			http.Error(w, "invalid `since` query parameter", http.StatusBadRequest)
			return
		}
		sinceMillis = parsed
	}

	entries, err := h.services.SyncService.History(ctx, userID, models.MillisToTime(sinceMillis))
	if err != nil {
		log.Err(err).Str("func", "*Handler.syncLog").Msg("error reading sync log")
		http.Error(w, "error reading sync log", statusFromError(err))
		return
	}

	if entries == nil {
		entries = []models.SyncLogEntry{}
	}
	utils.WriteJSON(w, entries, http.StatusOK)
}
