// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The vaultsync Authors

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// ErrDecryptionFailed is returned when a blob cannot be authenticated:
// either the supplied key is wrong or the ciphertext was modified after
// encryption. Callers match it with [errors.Is] and must treat it as fatal
// for the affected item only, never for a whole batch.
var ErrDecryptionFailed = errors.New("decryption failed")

// aesGCMProvider is the AES-256-GCM implementation of [Provider] with
// Argon2id key derivation.
type aesGCMProvider struct {
	// Argon2id tuning parameters. Kept in the struct so they can be
	// adjusted per deployment target (e.g. mobile vs. desktop).
	argonTime    uint32
	argonMemory  uint32
	argonThreads uint8
	argonKeyLen  uint32
}

// NewProvider constructs a [Provider] with the Argon2id parameters
// recommended by OWASP (2024):
//   - time cost:   1 iteration
//   - memory cost: 64 MiB
//   - parallelism: 4 threads
//   - key length:  32 bytes (256 bits)
func NewProvider() Provider {
	return &aesGCMProvider{
		argonTime:    1,
		argonMemory:  64 * 1024, // 64 MiB
		argonThreads: 4,
		argonKeyLen:  32, // 256 bits
	}
}

// GenerateSalt reads 16 random bytes from the OS CSPRNG. The salt is not a
// secret; it exists so that identical passphrases derive different keys.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// DeriveKey implements [Provider]. The result exists only in client memory
// and is never transmitted to the coordinator.
func (p *aesGCMProvider) DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey(
		[]byte(passphrase),
		salt,
		p.argonTime,
		p.argonMemory,
		p.argonThreads,
		p.argonKeyLen,
	)
}

// Encrypt implements [Provider]. A random 12-byte nonce is prepended to the
// ciphertext so that Decrypt can locate it: blob = nonce ‖ ciphertext ‖ tag.
func (p *aesGCMProvider) Encrypt(plaintext, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	blob := append(nonce, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt implements [Provider]. An authentication failure almost always
// means a wrong vault key or a tampered blob; both are reported as
// [ErrDecryptionFailed].
func (p *aesGCMProvider) Decrypt(blob string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	return plaintext, nil
}
