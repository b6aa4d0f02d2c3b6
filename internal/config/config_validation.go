// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package config

// validate checks that the final merged [StructuredConfig] satisfies the
// coordinator's startup invariants.
func (cfg *StructuredConfig) validate() error {
	if cfg.Storage.DB.DSN == "" {
		return ErrInvalidStorageConfigs
	}

	if cfg.Auth.TokenSignKey == "" || cfg.Auth.TokenIssuer == "" {
		return ErrInvalidAuthConfigs
	}

	return nil
}

func (cfg *ClientConfig) validate() error {
	if cfg.Adapter.ServerURL == "" || cfg.Adapter.RequestTimeout == 0 {
		return ErrInvalidAdapterConfigs
	}

	if cfg.Storage.LocalDBPath == "" {
		return ErrInvalidStorageConfigs
	}

	if cfg.Vault.VaultID == "" || cfg.Vault.DeviceFingerprint == "" {
		return ErrInvalidVaultConfigs
	}

	if cfg.Workers.SyncInterval == 0 {
		return ErrInvalidWorkerConfigs
	}

	return nil
}
