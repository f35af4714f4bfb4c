// Package security encrypts and decrypts credential secret material at
// rest using AES-256-GCM.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/cuemby/ridge/pkg/types"
)

// SecretsManager encrypts and decrypts credential material.
type SecretsManager struct {
	encryptionKey []byte // 32 bytes for AES-256
}

// NewSecretsManager creates a manager with a raw 32-byte key.
func NewSecretsManager(key []byte) (*SecretsManager, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes for AES-256, got %d", len(key))
	}
	return &SecretsManager{encryptionKey: key}, nil
}

// NewSecretsManagerFromPassphrase derives a 32-byte key from an arbitrary
// passphrase via SHA-256, for RIDGE_CREDENTIAL_KEY values that aren't
// already raw key material.
func NewSecretsManagerFromPassphrase(passphrase string) (*SecretsManager, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	hash := sha256.Sum256([]byte(passphrase))
	return NewSecretsManager(hash[:])
}

// Encrypt encrypts plaintext using AES-256-GCM, returning ciphertext with
// the nonce prepended.
func (sm *SecretsManager) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("cannot encrypt empty data")
	}

	block, err := aes.NewCipher(sm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt.
func (sm *SecretsManager) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("cannot decrypt empty data")
	}

	block, err := aes.NewCipher(sm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// EncryptCredential encrypts plaintext secret material and attaches it to
// cred.EncryptedData; cred.EncryptedData is the only place the ciphertext
// lives once this returns.
func (sm *SecretsManager) EncryptCredential(cred *types.Credential, plaintext []byte) error {
	ciphertext, err := sm.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential %s: %w", cred.ID, err)
	}
	cred.EncryptedData = ciphertext
	return nil
}

// DecryptCredential returns the plaintext secret material for cred. The
// core never inspects or logs this value beyond handing it to the
// scoped-secret-file writer.
func (sm *SecretsManager) DecryptCredential(cred *types.Credential) ([]byte, error) {
	if cred == nil {
		return nil, fmt.Errorf("credential cannot be nil")
	}
	return sm.Decrypt(cred.EncryptedData)
}
