// Copyright 2025 UkweliDB Authors
//
// Key Manager - handles Ed25519 key generation, loading, and file storage
// for ledger users. Per-user keypair files and their on-disk layout are
// external glue, out of the ledger core's scope; pkg/ledger uses this
// package's signing and hashing primitives but never calls KeyManager.

package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// KeyManager loads, generates, and persists a single user's Ed25519 key.
type KeyManager struct {
	keyPath string
	keyPair *KeyPair
}

// NewKeyManager creates a key manager bound to a key file path. An empty
// path means the key is held in memory only and never persisted.
func NewKeyManager(keyPath string) *KeyManager {
	return &KeyManager{keyPath: keyPath}
}

// LoadOrGenerateKey loads an existing key file, or generates and saves a
// new one if no file exists at the configured path.
func (km *KeyManager) LoadOrGenerateKey() error {
	if km.keyPath != "" {
		if _, err := os.Stat(km.keyPath); err == nil {
			return km.LoadKey()
		}
	}
	return km.GenerateNewKey()
}

// LoadKey loads an existing hex-encoded seed from the key path.
func (km *KeyManager) LoadKey() error {
	if km.keyPath == "" {
		return fmt.Errorf("crypto: no key path specified")
	}

	data, err := os.ReadFile(km.keyPath)
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}

	seed, err := hex.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("decode key hex: %w", err)
	}

	kp, err := GenerateFromSeed(seed)
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}
	km.keyPair = kp
	return nil
}

// GenerateNewKey generates a fresh key pair and, if a key path is
// configured, saves it.
func (km *KeyManager) GenerateNewKey() error {
	kp, err := GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}
	km.keyPair = kp

	if km.keyPath != "" {
		return km.SaveKey()
	}
	return nil
}

// GenerateFromUserID derives a deterministic key from a user_id and a
// ledger-scoped salt, so restarting with the same user_id and salt
// recovers the same identity without a key file.
func (km *KeyManager) GenerateFromUserID(userID, salt string) error {
	seed := sha256.Sum256([]byte(fmt.Sprintf("UKWELI_KEY_V1:%s:%s", salt, userID)))
	kp, err := GenerateFromSeed(seed[:])
	if err != nil {
		return fmt.Errorf("generate from user id: %w", err)
	}
	km.keyPair = kp
	return nil
}

// SaveKey writes the hex-encoded 32-byte seed to the key path with owner-only
// permissions, creating parent directories as needed.
func (km *KeyManager) SaveKey() error {
	if km.keyPath == "" {
		return fmt.Errorf("crypto: no key path specified")
	}
	if km.keyPair == nil {
		return fmt.Errorf("crypto: no key to save")
	}

	dir := filepath.Dir(km.keyPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	seedHex := hex.EncodeToString(km.keyPair.PrivateKeySeed())
	if err := os.WriteFile(km.keyPath, []byte(seedHex), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// KeyPair returns the loaded or generated key pair, or nil if none.
func (km *KeyManager) KeyPair() *KeyPair {
	return km.keyPair
}

// PublicKeyHex returns the loaded key's verifying key as a hex string.
func (km *KeyManager) PublicKeyHex() string {
	if km.keyPair == nil {
		return ""
	}
	return hex.EncodeToString(km.keyPair.PublicKeyBytes())
}
