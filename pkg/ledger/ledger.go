// Copyright 2025 UkweliDB Authors
//
// Package ledger implements the chained-record data model: an in-memory,
// index-dense sequence of cryptographically linked and signed records,
// plus the user registry chain verification depends on.
package ledger

import (
	"crypto/ed25519"
	"fmt"
	"time"

	ukwelicrypto "github.com/ukwelidb/ukwelidb/pkg/crypto"
	"github.com/ukwelidb/ukwelidb/pkg/metrics"
)

// Ledger is an ordered sequence of Records plus the registries chain
// verification needs: a users view and a verify-registry of verifying
// keys. Single-writer, single-process; Ledger holds no locks, so the
// caller is responsible for ensuring no concurrent mutation.
type Ledger struct {
	records        []Record
	users          map[string]User
	verifyRegistry map[string]ed25519.PublicKey

	// genesisSigner is never populated: New signs the genesis record and
	// then discards the GENESIS private key, so no ledger (new or
	// reconstructed) can author later records as GENESIS.
	genesisSigner Signer
}

// New creates a ledger containing only its genesis record, signed by a
// synthetic "GENESIS" user whose key pair is generated fresh and held
// only for the duration of construction.
func New() (*Ledger, error) {
	genesisKeys, err := ukwelicrypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate genesis key pair: %w", err)
	}

	l := &Ledger{
		users:          make(map[string]User),
		verifyRegistry: make(map[string]ed25519.PublicKey),
	}

	genesisUser := NewUser(GenesisUserID, genesisKeys.PublicKey)
	l.users[GenesisUserID] = genesisUser
	l.verifyRegistry[GenesisUserID] = genesisKeys.PublicKey

	signer := NewSigner(GenesisUserID, genesisKeys.PrivateKey)
	genesisRecord, err := newRecord(0, GenesisPayload, SentinelPrevHash, []Signer{signer})
	if err != nil {
		return nil, fmt.Errorf("construct genesis record: %w", err)
	}
	l.records = append(l.records, genesisRecord)

	return l, nil
}

// RegisterUser inserts a user into the registry. Re-registering the same
// user_id with an identical verifying key is a no-op; re-registering with
// a different key is rejected with KindAlreadyRegistered (the stricter of
// the two policies the source left ambiguous — see DESIGN.md).
func (l *Ledger) RegisterUser(u User) error {
	existing, ok := l.users[u.UserID]
	if ok {
		if !sameKey(existing.VerifyingKey, u.VerifyingKey) {
			return newError(KindAlreadyRegistered, fmt.Sprintf("user %q already registered with a different key", u.UserID))
		}
		return nil
	}

	l.users[u.UserID] = u
	l.verifyRegistry[u.UserID] = u.VerifyingKey
	metrics.UsersRegistered.Inc()
	return nil
}

// User looks up a registered user by id.
func (l *Ledger) User(userID string) (User, bool) {
	u, ok := l.users[userID]
	return u, ok
}

// Users returns a copy of the registered users, keyed by user_id.
func (l *Ledger) Users() map[string]User {
	out := make(map[string]User, len(l.users))
	for k, v := range l.users {
		out[k] = v
	}
	return out
}

// AddRecord appends a new record signed by signers over payload and
// returns its index. signers must each be registered in the ledger; the
// ledger itself never writes to a WAL — that is the caller's
// responsibility (see cmd/ukwelictl's add-record).
func (l *Ledger) AddRecord(payload string, signers []Signer) (uint64, error) {
	if len(payload) == 0 {
		return 0, newError(KindEmptyPayload, "")
	}
	if len(signers) == 0 {
		return 0, newError(KindNoSigners, "")
	}
	for _, s := range signers {
		if _, ok := l.verifyRegistry[s.UserID]; !ok {
			return 0, newError(KindUnregisteredUser, s.UserID)
		}
	}

	last, err := l.last()
	if err != nil {
		return 0, err
	}

	rec, err := newRecord(last.Index+1, payload, last.RecordHash, signers)
	if err != nil {
		return 0, err
	}

	l.records = append(l.records, rec)
	metrics.RecordsAppended.Inc()
	return rec.Index, nil
}

func (l *Ledger) last() (Record, error) {
	if len(l.records) == 0 {
		return Record{}, newError(KindRecordAccessFailed, "ledger has no records")
	}
	return l.records[len(l.records)-1], nil
}

// Length returns the number of records in the ledger, including genesis.
func (l *Ledger) Length() int {
	return len(l.records)
}

// RecordAt returns the record at index i.
func (l *Ledger) RecordAt(i uint64) (Record, bool) {
	if i >= uint64(len(l.records)) {
		return Record{}, false
	}
	return l.records[i], true
}

// Records returns a copy of the full record sequence, in index order.
func (l *Ledger) Records() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// VerifyChain walks the full record sequence and checks every invariant
// from spec.md §3: genesis sentinel, hash linkage, payload/record hash
// recomputation, contiguous indices, and per-signer signature validity.
// The first failure short-circuits with a KindChainValidation error
// carrying the offending record's index.
func (l *Ledger) VerifyChain() error {
	start := time.Now()
	defer func() { metrics.ChainVerifyDuration.Observe(time.Since(start).Seconds()) }()

	for i, rec := range l.records {
		if uint64(i) != rec.Index {
			return newErrorAt(KindChainValidation, i, fmt.Sprintf("index mismatch at position %d: got %d", i, rec.Index))
		}

		if i == 0 {
			if rec.PrevHash != SentinelPrevHash {
				return newErrorAt(KindChainValidation, 0, "genesis prev_hash is not the sentinel value")
			}
		} else {
			prev := l.records[i-1]
			if rec.PrevHash != prev.RecordHash {
				return newErrorAt(KindChainValidation, i, fmt.Sprintf("broken link at %d", i))
			}
		}

		wantPayloadHash := ukwelicrypto.HashHex([]byte(rec.Payload))
		if wantPayloadHash != rec.PayloadHash {
			return newErrorAt(KindChainValidation, i, fmt.Sprintf("Payload tampered at %d", i))
		}

		wantMaterial := canonicalMaterial(rec.Index, rec.PrevHash, rec.PayloadHash, rec.Timestamp, rec.Nonce, rec.Signers)
		wantRecordHash := ukwelicrypto.HashHex([]byte(wantMaterial))
		if wantRecordHash != rec.RecordHash {
			return newErrorAt(KindChainValidation, i, fmt.Sprintf("record hash mismatch at %d", i))
		}

		for _, signerID := range rec.Signers {
			key, ok := l.verifyRegistry[signerID]
			if !ok {
				return newErrorAt(KindChainValidation, i, fmt.Sprintf("unknown signer %q at %d", signerID, i))
			}
			if !verifySignature(rec, signerID, key) {
				return newErrorAt(KindChainValidation, i, fmt.Sprintf("invalid signature from %q at %d", signerID, i))
			}
		}
	}

	return nil
}
