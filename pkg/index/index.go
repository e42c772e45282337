package index

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/ukwelidb/ukwelidb/pkg/ledger"
)

const (
	hashPrefix   = "h:"
	signerPrefix = "s:"
)

// Index is a disk-backed, rebuildable secondary index over a ledger's
// records: record_hash -> record index, and user_id -> every record
// index that user signed.
type Index struct {
	store kv
}

// Open opens (creating if absent) a goleveldb-backed index at dir/name.
func Open(dir, name string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("index: create dir %s: %w", dir, err)
	}
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, fmt.Errorf("index: open goleveldb at %s: %w", filepath.Join(dir, name), err)
	}
	return &Index{store: newDBAdapter(db)}, nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	return idx.store.Close()
}

func encodeIndex(i uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, i)
	return buf
}

func decodeIndex(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}

func signerKey(userID string, recordIndex uint64) []byte {
	key := []byte(signerPrefix + userID + ":")
	return append(key, encodeIndex(recordIndex)...)
}

func signerRangeEnd(userID string) []byte {
	// "userID:" + 0xFF*8 bounds every key for this signer, since record
	// indices are fixed-width 8-byte keys. Keys of a user id that extends
	// this one with ':' (e.g. "userID:x") also sort inside the range;
	// RecordIndicesBySigner skips them by their length.
	return append([]byte(signerPrefix+userID+":"), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
}

// IndexRecord records one record's hash and signer set into the index.
func (idx *Index) IndexRecord(r ledger.Record) error {
	if err := idx.store.Set([]byte(hashPrefix+r.RecordHash), encodeIndex(r.Index)); err != nil {
		return fmt.Errorf("index: set hash entry for record %d: %w", r.Index, err)
	}
	for _, signer := range r.Signers {
		if err := idx.store.Set(signerKey(signer, r.Index), []byte{1}); err != nil {
			return fmt.Errorf("index: set signer entry for %q at record %d: %w", signer, r.Index, err)
		}
	}
	return nil
}

// RecordIndexByHash looks up a record's index by its record_hash.
func (idx *Index) RecordIndexByHash(hash string) (uint64, bool, error) {
	v, err := idx.store.Get([]byte(hashPrefix + hash))
	if err != nil {
		return 0, false, fmt.Errorf("index: get hash entry: %w", err)
	}
	if v == nil {
		return 0, false, nil
	}
	return decodeIndex(v), true, nil
}

// RecordIndicesBySigner returns every record index a user_id signed, in
// ascending order.
func (idx *Index) RecordIndicesBySigner(userID string) ([]uint64, error) {
	start := []byte(signerPrefix + userID + ":")
	it, err := idx.store.Iterator(start, signerRangeEnd(userID))
	if err != nil {
		return nil, fmt.Errorf("index: open signer iterator: %w", err)
	}
	defer it.Close()

	var out []uint64
	for ; it.Valid(); it.Next() {
		key := it.Key()
		if len(key) != len(start)+8 {
			continue
		}
		out = append(out, decodeIndex(key[len(key)-8:]))
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("index: iterate signer entries: %w", err)
	}
	return out, nil
}

// Rebuild wipes nothing explicitly (keys are content-addressed and
// idempotent to re-write) and re-indexes every record currently in l.
// Nothing in this module calls it automatically: pkg/recovery does not
// open or rebuild an index, so a caller that keeps one rebuilds it
// itself after recovering a ledger.
func (idx *Index) Rebuild(l *ledger.Ledger) error {
	for _, r := range l.Records() {
		if err := idx.IndexRecord(r); err != nil {
			return err
		}
	}
	return nil
}
