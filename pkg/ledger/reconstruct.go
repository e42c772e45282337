package ledger

import (
	"crypto/ed25519"
	"fmt"
)

// Reconstruct rebuilds an in-memory Ledger from persisted state: users
// first (so the verify-registry is populated), then records in index
// order. It is used by pkg/snapshot and pkg/recovery to load a ledger
// back from disk; it trusts the persisted hashes and signatures as-is —
// callers MUST call VerifyChain afterward to confirm integrity.
//
// The reconstructed ledger has no genesis signer: the GENESIS private
// key is ephemeral and never persisted, so a reconstructed ledger cannot
// author new records as GENESIS. That is intentional.
func Reconstruct(users []User, records []Record) (*Ledger, error) {
	l := &Ledger{
		users:          make(map[string]User, len(users)),
		verifyRegistry: make(map[string]ed25519.PublicKey, len(users)),
	}

	for _, u := range users {
		if err := l.RegisterUser(u); err != nil {
			return nil, err
		}
	}

	for _, r := range records {
		if err := l.AppendRaw(r); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// AppendRaw appends an already-constructed record (hashes, timestamp,
// nonce, and signatures already computed) without re-deriving or
// re-signing anything. Used during WAL replay and snapshot reconstruction.
// The record's index must equal the current length of the ledger.
func (l *Ledger) AppendRaw(r Record) error {
	if r.Index != uint64(len(l.records)) {
		return newErrorAt(KindDuplicateRecord, int(r.Index), fmt.Sprintf("expected index %d, got %d", len(l.records), r.Index))
	}
	l.records = append(l.records, r)
	return nil
}

// HasRecord reports whether a record at index already exists.
func (l *Ledger) HasRecord(index uint64) bool {
	return index < uint64(len(l.records))
}
