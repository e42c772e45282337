// Copyright 2025 UkweliDB Authors
//
// Ed25519 Signing Primitives
//
// This package provides:
// - Key generation (private/public key pairs)
// - Signing and verification over the hex record_hash string
// - SHA-256 hashing to hex
//
// Uses crypto/ed25519 for 32-byte keys and 64-byte signatures, matching
// the ledger's record_hash/signature sizes exactly.

package crypto

import (
	"crypto/ed25519"
	cryptorand "crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Size constants. Ed25519 keys and signatures have fixed sizes; these
// mirror the ledger's "32-byte curve keys and 64-byte signatures" contract.
const (
	PrivateKeySize = ed25519.PrivateKeySize // 64 (seed + public key, per stdlib convention)
	SeedSize       = ed25519.SeedSize       // 32
	PublicKeySize  = ed25519.PublicKeySize  // 32
	SignatureSize  = ed25519.SignatureSize  // 64
)

// ErrInvalidKeySize is returned when a key is not the expected length.
var ErrInvalidKeySize = errors.New("crypto: invalid key size")

// ErrInvalidSignatureSize is returned when a signature is not 64 bytes.
var ErrInvalidSignatureSize = errors.New("crypto: invalid signature size")

// KeyPair holds an Ed25519 private/public key pair. PrivateKey is held only
// by the key's owner and is never persisted into a ledger; ledgers store
// only the 32-byte VerifyingKey.
type KeyPair struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
}

// GenerateKeyPair generates a new Ed25519 key pair using a secure random source.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(cryptorand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &KeyPair{PrivateKey: priv, PublicKey: pub}, nil
}

// GenerateFromSeed derives a deterministic key pair from a 32-byte seed.
// KeyManager uses it to rebuild a key pair from a stored or derived seed;
// it also suits reproducible test fixtures. (The GENESIS signer's key pair
// comes from GenerateKeyPair instead.)
func GenerateFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidKeySize, SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &KeyPair{PrivateKey: priv, PublicKey: pub}, nil
}

// Sign signs message with the key pair's private key. Per the ledger's
// record format, message is always the raw ASCII bytes of a hex digest
// string, never a raw binary digest.
func (kp *KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.PrivateKey, message)
}

// PublicKeyBytes returns the 32-byte verifying key.
func (kp *KeyPair) PublicKeyBytes() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, kp.PublicKey)
	return out
}

// PrivateKeySeed returns the 32-byte seed backing the private key, the
// form persisted to per-user keypair files.
func (kp *KeyPair) PrivateKeySeed() []byte {
	return kp.PrivateKey.Seed()
}

// Verify checks a detached signature over message against a verifying key.
func Verify(verifyingKey ed25519.PublicKey, message, signature []byte) bool {
	if len(verifyingKey) != PublicKeySize || len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(verifyingKey, message, signature)
}

// HashHex returns the lowercase hex-encoded SHA-256 digest of data, the
// hashing idiom shared by every hash computed across the ledger.
func HashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashBytes returns the raw 32-byte SHA-256 digest of data.
func HashBytes(data []byte) [32]byte {
	return sha256.Sum256(data)
}
