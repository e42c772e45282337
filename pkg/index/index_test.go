package index

import (
	"path/filepath"
	"testing"

	ukwelicrypto "github.com/ukwelidb/ukwelidb/pkg/crypto"
	"github.com/ukwelidb/ukwelidb/pkg/ledger"
)

func TestIndexRecordAndLookup(t *testing.T) {
	idx, err := Open(t.TempDir(), "test-index")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	l, err := ledger.New()
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	keys, _ := ukwelicrypto.GenerateKeyPair()
	user := ledger.NewUser("erin", keys.PublicKey)
	if err := l.RegisterUser(user); err != nil {
		t.Fatalf("register user: %v", err)
	}
	signer := ledger.NewSigner("erin", keys.PrivateKey)

	i1, err := l.AddRecord("first", []ledger.Signer{signer})
	if err != nil {
		t.Fatalf("add record 1: %v", err)
	}
	i2, err := l.AddRecord("second", []ledger.Signer{signer})
	if err != nil {
		t.Fatalf("add record 2: %v", err)
	}

	for _, i := range []uint64{i1, i2} {
		rec, _ := l.RecordAt(i)
		if err := idx.IndexRecord(rec); err != nil {
			t.Fatalf("index record %d: %v", i, err)
		}
	}

	rec1, _ := l.RecordAt(i1)
	found, ok, err := idx.RecordIndexByHash(rec1.RecordHash)
	if err != nil || !ok || found != i1 {
		t.Fatalf("hash lookup mismatch: found=%d ok=%v err=%v", found, ok, err)
	}

	sigs, err := idx.RecordIndicesBySigner("erin")
	if err != nil {
		t.Fatalf("signer lookup: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("expected 2 signed records for erin, got %d: %v", len(sigs), sigs)
	}
}

func TestRebuildReindexesFullLedger(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "sub"), "rebuild-index")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	l, _ := ledger.New()
	keys, _ := ukwelicrypto.GenerateKeyPair()
	user := ledger.NewUser("frank", keys.PublicKey)
	l.RegisterUser(user)
	signer := ledger.NewSigner("frank", keys.PrivateKey)
	l.AddRecord("payload", []ledger.Signer{signer})

	if err := idx.Rebuild(l); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	sigs, err := idx.RecordIndicesBySigner("frank")
	if err != nil || len(sigs) != 1 {
		t.Fatalf("expected 1 record for frank after rebuild, got %d err=%v", len(sigs), err)
	}
}
