package config

import (
	"fmt"
	"strings"
	"time"
)

// ClientAdapter holds network settings used by the agent transport layer.
type ClientAdapter struct {
	// ServerURL is the coordinator base URL (e.g. "http://localhost:8080").
	ServerURL string `env:"SERVER_URL"`
	// WebSocketURL is the real-time channel endpoint
	// (e.g. "ws://localhost:8080/ws"). Derived from ServerURL when empty.
	WebSocketURL string `env:"WS_URL"`
	// Token is the bearer token used on REST requests and the AUTH
	// handshake. Issued out of band by the account subsystem.
	Token string `env:"TOKEN"`
	// RequestTimeout is the default timeout for outbound requests.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	// ReconnectDelay is the fixed delay before the single scheduled
	// real-time reconnect attempt.
	ReconnectDelay time.Duration `env:"RECONNECT_DELAY"`
}

// ClientStorage groups the agent's local storage settings.
type ClientStorage struct {
	// LocalDBPath is the path of the SQLite database holding the local
	// encrypted store (":memory:" for tests).
	LocalDBPath string `env:"LOCAL_DB_PATH"`
}

// ClientVault identifies which vault this agent synchronizes and as which
// device.
type ClientVault struct {
	// VaultID is the vault being synchronized.
	VaultID string `env:"VAULT_ID"`
	// DeviceFingerprint is the stable client-generated device identifier.
	DeviceFingerprint string `env:"DEVICE_FINGERPRINT"`
	// Passphrase is the vault passphrase the encryption key is derived
	// from. Never sent to the coordinator.
	Passphrase string `env:"PASSPHRASE"`
	// SaltPath points at the file holding the key-derivation salt.
	SaltPath string `env:"SALT_PATH"`
}

// ClientWorkers contains background sync settings.
type ClientWorkers struct {
	// SyncInterval defines how often the periodic sync job runs.
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`
}

// ClientConfig is the top-level configuration of the sync agent.
type ClientConfig struct {
	Adapter ClientAdapter `envPrefix:"ADAPTER_"`
	Storage ClientStorage `envPrefix:"STORAGE_"`
	Vault   ClientVault   `envPrefix:"VAULT_"`
	Workers ClientWorkers `envPrefix:"WORKERS_"`
}

// GetClientConfig loads the sync agent configuration from environment
// variables, applies defaults, and validates the result.
func GetClientConfig() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := parseEnv(cfg); err != nil {
		return nil, fmt.Errorf("error parsing client env configs: %w", err)
	}

	if cfg.Adapter.RequestTimeout == 0 {
		cfg.Adapter.RequestTimeout = 15 * time.Second
	}
	if cfg.Adapter.ReconnectDelay == 0 {
		cfg.Adapter.ReconnectDelay = 5 * time.Second
	}
	if cfg.Workers.SyncInterval == 0 {
		cfg.Workers.SyncInterval = 5 * time.Minute
	}
	if cfg.Adapter.WebSocketURL == "" {
		cfg.Adapter.WebSocketURL = deriveWebSocketURL(cfg.Adapter.ServerURL)
	}

	return cfg, cfg.validate()
}

// deriveWebSocketURL maps the coordinator base URL to its realtime
// endpoint: the scheme switches to ws/wss and the /ws path is appended.
func deriveWebSocketURL(serverURL string) string {
	if serverURL == "" {
		return ""
	}

	wsURL := serverURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}

	return strings.TrimRight(wsURL, "/") + "/ws"
}
