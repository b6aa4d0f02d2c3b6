// Package crypto implements the provider that turns vault-item plaintext
// into the opaque blobs the sync engine moves around. The engine itself
// never looks inside a blob: everything above this package treats ciphertext
// as a string.
package crypto

//go:generate mockgen -source=interfaces.go -destination=../mock/crypto_provider_mock.go -package=mock

// Provider is the fixed contract the sync engine depends on.
//
// Encrypt produces an opaque blob from plaintext under key; Decrypt reverses
// it, failing with [ErrDecryptionFailed] on a wrong key or tampered blob
// (authentication-tag mismatch). A decryption failure must never be
// silently swallowed by callers.
type Provider interface {
	// Encrypt seals plaintext under the 256-bit key and returns a
	// base64-encoded blob (nonce ‖ ciphertext ‖ tag).
	Encrypt(plaintext, key []byte) (string, error)

	// Decrypt opens a blob produced by Encrypt. Returns
	// [ErrDecryptionFailed] (wrapped) if the key is wrong or the blob was
	// modified after encryption; corrupted plaintext is never returned.
	Decrypt(blob string, key []byte) ([]byte, error)

	// DeriveKey stretches a passphrase and salt into a 256-bit vault key
	// using Argon2id.
	DeriveKey(passphrase string, salt []byte) []byte
}
