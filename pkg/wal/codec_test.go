package wal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	ukwelicrypto "github.com/ukwelidb/ukwelidb/pkg/crypto"
	"github.com/ukwelidb/ukwelidb/pkg/ledger"
	"github.com/ukwelidb/ukwelidb/pkg/storage"
)

func TestAppendAndReadAllRoundTrip(t *testing.T) {
	l, err := ledger.New()
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	keys, err := ukwelicrypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	user := ledger.NewUser("bob", keys.PublicKey, "reviewer")
	if err := l.RegisterUser(user); err != nil {
		t.Fatalf("register user: %v", err)
	}
	signer := ledger.NewSigner("bob", keys.PrivateKey)
	idx, err := l.AddRecord("payload-1", []ledger.Signer{signer})
	if err != nil {
		t.Fatalf("add record: %v", err)
	}
	rec, _ := l.RecordAt(idx)

	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := OpenWriter(path)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	if err := w.AppendUser(user); err != nil {
		t.Fatalf("append user: %v", err)
	}
	if err := w.AppendRecord(rec); err != nil {
		t.Fatalf("append record: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := ReadAll(path)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Type != EntryUser || entries[0].User == nil || entries[0].User.UserID != "bob" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Type != EntryRecord || entries[1].Record == nil || entries[1].Record.RecordHash != rec.RecordHash {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}

func TestReadAllToleratesTruncatedTail(t *testing.T) {
	l, _ := ledger.New()
	keys, _ := ukwelicrypto.GenerateKeyPair()
	user := ledger.NewUser("carol", keys.PublicKey)
	l.RegisterUser(user)
	signer := ledger.NewSigner("carol", keys.PrivateKey)
	idx, _ := l.AddRecord("payload", []ledger.Signer{signer})
	rec, _ := l.RecordAt(idx)

	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := OpenWriter(path)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	if err := w.AppendRecord(rec); err != nil {
		t.Fatalf("append record: %v", err)
	}
	w.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	truncated := raw[:len(raw)-5]
	if err := os.WriteFile(path, truncated, 0o644); err != nil {
		t.Fatalf("write truncated: %v", err)
	}

	entries, err := ReadAll(path)
	if err != nil {
		t.Fatalf("read all on truncated log: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected truncated trailing entry to be dropped, got %d entries", len(entries))
	}
}

func TestReadAllRejectsPayloadChecksumMismatch(t *testing.T) {
	l, _ := ledger.New()
	keys, _ := ukwelicrypto.GenerateKeyPair()
	user := ledger.NewUser("erin", keys.PublicKey)
	l.RegisterUser(user)
	signer := ledger.NewSigner("erin", keys.PrivateKey)
	idx, _ := l.AddRecord("payload", []ledger.Signer{signer})
	rec, _ := l.RecordAt(idx)

	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := OpenWriter(path)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	if err := w.AppendRecord(rec); err != nil {
		t.Fatalf("append record: %v", err)
	}
	w.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	// Flip a byte inside the entry's JSON payload, past the wal-level
	// magic and the entry header, leaving the stored checksum stale.
	payloadStart := len(Magic) + entryHeaderSize
	raw[payloadStart] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write tampered: %v", err)
	}

	_, err = ReadAll(path)
	if err == nil {
		t.Fatal("expected payload checksum mismatch to be rejected")
	}
	var storageErr *storage.Error
	if !errors.As(err, &storageErr) || storageErr.Kind != storage.KindChecksumMismatch {
		t.Fatalf("expected a ChecksumMismatch storage.Error, got %v", err)
	}
}

func TestReadAllStopsCleanlyOnMidStreamBadMagic(t *testing.T) {
	l, _ := ledger.New()
	keys, _ := ukwelicrypto.GenerateKeyPair()
	user := ledger.NewUser("frank", keys.PublicKey)
	l.RegisterUser(user)
	signer := ledger.NewSigner("frank", keys.PrivateKey)
	idx, _ := l.AddRecord("payload", []ledger.Signer{signer})
	rec, _ := l.RecordAt(idx)

	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := OpenWriter(path)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	if err := w.AppendUser(user); err != nil {
		t.Fatalf("append user: %v", err)
	}
	if err := w.AppendRecord(rec); err != nil {
		t.Fatalf("append record: %v", err)
	}
	w.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}

	firstHeaderStart := len(Magic)
	firstPayloadLen := byteOrder.Uint32(raw[firstHeaderStart+13 : firstHeaderStart+17])
	secondHeaderStart := firstHeaderStart + entryHeaderSize + int(firstPayloadLen)
	raw[secondHeaderStart] ^= 0xFF // corrupt the second entry's magic bytes
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write corrupted: %v", err)
	}

	entries, err := ReadAll(path)
	if err != nil {
		t.Fatalf("expected mid-stream bad magic to stop replay cleanly, got error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected replay to stop after the first entry, got %d entries", len(entries))
	}
	if entries[0].Type != EntryUser || entries[0].User == nil || entries[0].User.UserID != "frank" {
		t.Fatalf("unexpected surviving entry: %+v", entries[0])
	}
}

func TestTruncateResetsLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := OpenWriter(path)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	l, _ := ledger.New()
	keys, _ := ukwelicrypto.GenerateKeyPair()
	user := ledger.NewUser("dave", keys.PublicKey)
	l.RegisterUser(user)
	w.AppendUser(user)
	w.Close()

	if err := Truncate(path); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	entries, err := ReadAll(path)
	if err != nil {
		t.Fatalf("read all after truncate: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty log after truncate, got %d entries", len(entries))
	}
}
