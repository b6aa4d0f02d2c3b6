package http

import (
	"errors"
	"net/http"

	"github.com/vaultsync/vaultsync/internal/service"
	"github.com/vaultsync/vaultsync/internal/store"
)

// ErrVaultAccessDenied maps to 404 on purpose: answering 403 would confirm
// that the vault ID exists and belongs to someone else.
var errorStatusMap = map[error]int{
	service.ErrInvalidDataProvided: http.StatusBadRequest,
	service.ErrTokenIsExpired:      http.StatusUnauthorized,
	service.ErrVaultAccessDenied:   http.StatusNotFound,

	store.ErrVaultNotFound:      http.StatusNotFound,
	store.ErrItemNotFound:       http.StatusNotFound,
	store.ErrVaultAlreadyExists: http.StatusConflict,
	store.ErrVersionConflict:    http.StatusConflict,

	store.ErrBuildingSQLQuery:     http.StatusInternalServerError,
	store.ErrExecutingQuery:       http.StatusInternalServerError,
	store.ErrBeginningTransaction: http.StatusInternalServerError,
	store.ErrCommitingTransaction: http.StatusInternalServerError,
	store.ErrScanningRow:          http.StatusInternalServerError,
	store.ErrScanningRows:         http.StatusInternalServerError,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
