package crypto

import (
	"testing"
)

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	if len(kp.PublicKeyBytes()) != PublicKeySize {
		t.Errorf("public key size = %d, want %d", len(kp.PublicKeyBytes()), PublicKeySize)
	}
	if len(kp.PrivateKeySeed()) != SeedSize {
		t.Errorf("seed size = %d, want %d", len(kp.PrivateKeySeed()), SeedSize)
	}
}

func TestGenerateFromSeedDeterministic(t *testing.T) {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}

	kp1, err := GenerateFromSeed(seed)
	if err != nil {
		t.Fatalf("generate from seed: %v", err)
	}
	kp2, err := GenerateFromSeed(seed)
	if err != nil {
		t.Fatalf("generate from seed (2): %v", err)
	}

	if string(kp1.PublicKeyBytes()) != string(kp2.PublicKeyBytes()) {
		t.Error("same seed produced different public keys")
	}
}

func TestGenerateFromSeedRejectsBadSize(t *testing.T) {
	if _, err := GenerateFromSeed([]byte("too short")); err == nil {
		t.Fatal("expected error for undersized seed")
	}
}

func TestSignAndVerify(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	message := []byte(HashHex([]byte("pay 100")))
	sig := kp.Sign(message)

	if len(sig) != SignatureSize {
		t.Fatalf("signature size = %d, want %d", len(sig), SignatureSize)
	}
	if !Verify(kp.PublicKey, message, sig) {
		t.Error("expected valid signature to verify")
	}

	if Verify(kp.PublicKey, []byte("tampered"), sig) {
		t.Error("expected verification to fail for tampered message")
	}

	other, _ := GenerateKeyPair()
	if Verify(other.PublicKey, message, sig) {
		t.Error("expected verification to fail for wrong key")
	}
}

func TestHashHexLength(t *testing.T) {
	h := HashHex([]byte("Genesis"))
	if len(h) != 64 {
		t.Errorf("hash hex length = %d, want 64", len(h))
	}
}

func TestKeyManagerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/user.key"

	km := NewKeyManager(path)
	if err := km.LoadOrGenerateKey(); err != nil {
		t.Fatalf("generate: %v", err)
	}
	wantPub := km.PublicKeyHex()

	km2 := NewKeyManager(path)
	if err := km2.LoadOrGenerateKey(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if km2.PublicKeyHex() != wantPub {
		t.Error("loaded key does not match saved key")
	}
}

func TestGenerateFromUserIDDeterministic(t *testing.T) {
	km1 := NewKeyManager("")
	if err := km1.GenerateFromUserID("Alice", "ledger-1"); err != nil {
		t.Fatalf("generate from user id: %v", err)
	}
	km2 := NewKeyManager("")
	if err := km2.GenerateFromUserID("Alice", "ledger-1"); err != nil {
		t.Fatalf("generate from user id (2): %v", err)
	}
	if km1.PublicKeyHex() != km2.PublicKeyHex() {
		t.Error("same user id/salt produced different keys")
	}

	km3 := NewKeyManager("")
	if err := km3.GenerateFromUserID("Bob", "ledger-1"); err != nil {
		t.Fatalf("generate from user id (3): %v", err)
	}
	if km1.PublicKeyHex() == km3.PublicKeyHex() {
		t.Error("different user ids produced the same key")
	}
}
