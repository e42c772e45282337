package ledger

import (
	"crypto/ed25519"
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	ukwelicrypto "github.com/ukwelidb/ukwelidb/pkg/crypto"
)

// Record is one entry in the append-only chain. Signers is stored as
// user_id strings only — never as full User/Signer objects — so a
// record never leaks private material across ownership boundaries.
type Record struct {
	Index       uint64
	Payload     string
	PayloadHash string

	Signers    []string
	Signatures map[string][64]byte

	PrevHash   string
	RecordHash string

	Timestamp uint64
	Nonce     uint64
}

// canonicalMaterial reproduces the exact string hashed to produce a
// record's RecordHash. Implementers MUST keep this bit-exact: any
// divergence silently breaks every persisted chain's verifiability.
func canonicalMaterial(index uint64, prevHash, payloadHash string, timestamp, nonce uint64, signers []string) string {
	return strings.Join([]string{
		strconv.FormatUint(index, 10),
		prevHash,
		payloadHash,
		strconv.FormatUint(timestamp, 10),
		strconv.FormatUint(nonce, 10),
		strings.Join(signers, ","),
	}, " ")
}

func randomNonce() (uint64, error) {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read random nonce: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// newRecord computes payload_hash, picks a wall-clock timestamp and a
// cryptographically random nonce, builds the canonical material, derives
// record_hash, then produces one detached signature per signer over the
// raw bytes of the hex record_hash string.
//
// newRecord is infallible given valid inputs; callers (the Ledger) are
// responsible for enforcing preconditions: non-empty payload, at least
// one signer, and every signer registered.
func newRecord(index uint64, payload, prevHash string, signers []Signer) (Record, error) {
	payloadHash := ukwelicrypto.HashHex([]byte(payload))

	signerIDs := make([]string, len(signers))
	for i, s := range signers {
		signerIDs[i] = s.UserID
	}

	timestamp := uint64(time.Now().Unix())
	nonce, err := randomNonce()
	if err != nil {
		return Record{}, err
	}

	material := canonicalMaterial(index, prevHash, payloadHash, timestamp, nonce, signerIDs)
	recordHash := ukwelicrypto.HashHex([]byte(material))

	signatures := make(map[string][64]byte, len(signers))
	for _, s := range signers {
		sig := s.Sign([]byte(recordHash))
		var fixed [64]byte
		copy(fixed[:], sig)
		signatures[s.UserID] = fixed
	}

	return Record{
		Index:       index,
		Payload:     payload,
		PayloadHash: payloadHash,
		Signers:     signerIDs,
		Signatures:  signatures,
		PrevHash:    prevHash,
		RecordHash:  recordHash,
		Timestamp:   timestamp,
		Nonce:       nonce,
	}, nil
}

// verifySignature checks one signer's signature over r's record_hash
// against the supplied verifying key.
func verifySignature(r Record, userID string, verifyingKey ed25519.PublicKey) bool {
	sig, ok := r.Signatures[userID]
	if !ok {
		return false
	}
	return ukwelicrypto.Verify(verifyingKey, []byte(r.RecordHash), sig[:])
}
