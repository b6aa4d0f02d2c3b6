package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vaultsync/vaultsync/internal/config"
	"github.com/vaultsync/vaultsync/internal/logger"
	"github.com/vaultsync/vaultsync/internal/store"
	"github.com/vaultsync/vaultsync/internal/utils"
	"github.com/vaultsync/vaultsync/models"
)

// authService resolves bearer tokens and manages sync participants.
// Account provisioning lives with the identity service; here a token is
// the source of truth for who is asking.
type authService struct {
	devices store.DeviceRepository
	vaults  store.VaultRepository

	tokenSignKey string
	tokenIssuer  string

	logger *logger.Logger
}

func NewAuthService(devices store.DeviceRepository, vaults store.VaultRepository, cfg config.Auth, logger *logger.Logger) AuthService {
	return &authService{
		devices:      devices,
		vaults:       vaults,
		tokenSignKey: cfg.TokenSignKey,
		tokenIssuer:  cfg.TokenIssuer,
		logger:       logger,
	}
}

// ParseToken validates the signature, issuer and lifetime of a JWT and
// returns the parsed token.
func (a *authService) ParseToken(ctx context.Context, tokenString string) (models.Token, error) {
	log := logger.FromContext(ctx)

	token, err := utils.ValidateAndParseJWTToken(tokenString, a.tokenSignKey, a.tokenIssuer)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Token{}, ErrTokenIsExpired
		}
		log.Err(err).Str("func", "authService.ParseToken").Msg("error parsing token")
		return models.Token{}, fmt.Errorf("error parsing token: %w", err)
	}

	return token, nil
}

func (a *authService) RegisterDevice(ctx context.Context, userID int64, fingerprint string) (models.Device, error) {
	log := logger.FromContext(ctx)

	if fingerprint == "" {
		return models.Device{}, ErrInvalidDataProvided
	}

	device, err := a.devices.UpsertDevice(ctx, fingerprint, userID)
	if err != nil {
		log.Err(err).Str("func", "authService.RegisterDevice").Str("fingerprint", fingerprint).Msg("error registering device")
		return models.Device{}, fmt.Errorf("error registering device: %w", err)
	}

	return device, nil
}

func (a *authService) CreateVault(ctx context.Context, userID int64, vaultID, name string) (models.Vault, error) {
	log := logger.FromContext(ctx)

	if vaultID == "" {
		vaultID = uuid.NewString()
	}

	vault, err := a.vaults.CreateVault(ctx, vaultID, userID, name)
	if err != nil {
		log.Err(err).Str("func", "authService.CreateVault").Str("vault_id", vaultID).Msg("error creating vault")
		return models.Vault{}, fmt.Errorf("error creating vault: %w", err)
	}

	return vault, nil
}
