package wal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ukwelidb/ukwelidb/pkg/ledger"
	"github.com/ukwelidb/ukwelidb/pkg/metrics"
	"github.com/ukwelidb/ukwelidb/pkg/storage"
)

type recordWire struct {
	Index       uint64            `json:"index"`
	Payload     string            `json:"payload"`
	PayloadHash string            `json:"payload_hash"`
	Signers     []string          `json:"signers"`
	Signatures  map[string]string `json:"signatures"`
	PrevHash    string            `json:"prev_hash"`
	RecordHash  string            `json:"record_hash"`
	Timestamp   uint64            `json:"timestamp"`
	Nonce       uint64            `json:"nonce"`
}

type userWire struct {
	UserID       string   `json:"user_id"`
	VerifyingKey string   `json:"verifying_key"`
	Roles        []string `json:"roles"`
}

func recordToWire(r ledger.Record) recordWire {
	sigs := make(map[string]string, len(r.Signatures))
	for userID, sig := range r.Signatures {
		sigs[userID] = hex.EncodeToString(sig[:])
	}
	return recordWire{
		Index: r.Index, Payload: r.Payload, PayloadHash: r.PayloadHash,
		Signers: r.Signers, Signatures: sigs,
		PrevHash: r.PrevHash, RecordHash: r.RecordHash,
		Timestamp: r.Timestamp, Nonce: r.Nonce,
	}
}

func recordFromWire(w recordWire) (ledger.Record, error) {
	sigs := make(map[string][64]byte, len(w.Signatures))
	for userID, hexSig := range w.Signatures {
		raw, err := hex.DecodeString(hexSig)
		if err != nil {
			return ledger.Record{}, storage.Wrap(storage.KindDeserialization, fmt.Sprintf("decode signature for %q", userID), err)
		}
		if len(raw) != 64 {
			return ledger.Record{}, storage.New(storage.KindDeserialization, fmt.Sprintf("signature for %q is %d bytes, want 64", userID, len(raw)))
		}
		var fixed [64]byte
		copy(fixed[:], raw)
		sigs[userID] = fixed
	}
	return ledger.Record{
		Index: w.Index, Payload: w.Payload, PayloadHash: w.PayloadHash,
		Signers: w.Signers, Signatures: sigs,
		PrevHash: w.PrevHash, RecordHash: w.RecordHash,
		Timestamp: w.Timestamp, Nonce: w.Nonce,
	}, nil
}

func userToWire(u ledger.User) userWire {
	return userWire{UserID: u.UserID, VerifyingKey: hex.EncodeToString(u.VerifyingKey), Roles: u.RoleList()}
}

func userFromWire(w userWire) (ledger.User, error) {
	key, err := hex.DecodeString(w.VerifyingKey)
	if err != nil {
		return ledger.User{}, storage.Wrap(storage.KindDeserialization, fmt.Sprintf("decode verifying_key for %q", w.UserID), err)
	}
	return ledger.NewUser(w.UserID, key, w.Roles...), nil
}

// Entry is one decoded WAL entry, ready for replay against a ledger.
type Entry struct {
	Type     EntryType
	Sequence uint64
	Record   *ledger.Record
	User     *ledger.User
}

// Writer appends entries to a WAL file, fsyncing after every entry so a
// crash immediately after a successful AppendRecord/AppendUser call never
// loses that entry.
type Writer struct {
	f   *os.File
	seq uint64
}

// OpenWriter opens path for appending, creating it (with the magic
// prefix) if it does not already exist. It scans the existing file once
// to resume the sequence counter where a prior writer left off.
func OpenWriter(path string) (*Writer, error) {
	_, statErr := os.Stat(path)
	needsMagic := os.IsNotExist(statErr)

	var existing []Entry
	if !needsMagic {
		var err error
		existing, err = ReadAll(path)
		if err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}

	if needsMagic {
		if _, err := f.Write(Magic[:]); err != nil {
			f.Close()
			return nil, fmt.Errorf("wal: write magic: %w", err)
		}
	}

	return &Writer{f: f, seq: uint64(len(existing))}, nil
}

func (w *Writer) appendPayload(entryType EntryType, payload []byte) error {
	checksum := sha256.Sum256(payload)

	header := make([]byte, entryHeaderSize)
	copy(header[0:4], Magic[:])
	header[4] = byte(entryType)
	byteOrder.PutUint64(header[5:13], w.seq)
	byteOrder.PutUint32(header[13:17], uint32(len(payload)))
	copy(header[17:49], checksum[:])

	if _, err := w.f.Write(header); err != nil {
		return fmt.Errorf("wal: write entry header: %w", err)
	}
	if _, err := w.f.Write(payload); err != nil {
		return fmt.Errorf("wal: write entry payload: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	w.seq++
	metrics.WALEntriesAppended.Inc()
	return nil
}

// AppendRecord durably logs a newly-appended ledger record.
func (w *Writer) AppendRecord(r ledger.Record) error {
	payload, err := json.Marshal(recordToWire(r))
	if err != nil {
		return fmt.Errorf("wal: marshal record entry: %w", err)
	}
	return w.appendPayload(EntryRecord, payload)
}

// AppendUser durably logs a newly-registered user.
func (w *Writer) AppendUser(u ledger.User) error {
	payload, err := json.Marshal(userToWire(u))
	if err != nil {
		return fmt.Errorf("wal: marshal user entry: %w", err)
	}
	return w.appendPayload(EntryUser, payload)
}

// Close releases the underlying file handle.
func (w *Writer) Close() error {
	return w.f.Close()
}

// ReadAll replays every well-formed entry in path, in append order. A
// truncated final entry (fewer bytes remaining than its own header or
// payload claims) is treated as the tail of an interrupted write and
// silently dropped rather than treated as an error — the same tolerance
// crash-safe WALs generally apply to their own last record.
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil
		}
		return nil, fmt.Errorf("wal: read magic: %w", err)
	}
	if magic != Magic {
		return nil, storage.New(storage.KindInvalidMagic, fmt.Sprintf("bad magic %q", magic[:]))
	}

	var entries []Entry
	for {
		header := make([]byte, entryHeaderSize)
		n, err := io.ReadFull(f, header)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF || n < entryHeaderSize {
			break // truncated header: interrupted write, stop here
		}
		if err != nil {
			return nil, fmt.Errorf("wal: read entry header: %w", err)
		}

		var headerMagic [4]byte
		copy(headerMagic[:], header[0:4])
		if headerMagic != Magic {
			break // mid-stream structural corruption: treat as an unclean tail, stop here
		}
		entryType := EntryType(header[4])
		seq := byteOrder.Uint64(header[5:13])
		payloadLen := byteOrder.Uint32(header[13:17])
		var wantChecksum [32]byte
		copy(wantChecksum[:], header[17:49])

		payload := make([]byte, payloadLen)
		n, err = io.ReadFull(f, payload)
		if err == io.EOF || err == io.ErrUnexpectedEOF || uint32(n) < payloadLen {
			break // truncated payload: interrupted write, stop here
		}
		if err != nil {
			return nil, fmt.Errorf("wal: read entry payload: %w", err)
		}

		if sha256.Sum256(payload) != wantChecksum {
			metrics.WALChecksumMismatches.Inc()
			return nil, storage.New(storage.KindChecksumMismatch, fmt.Sprintf("entry %d fails payload checksum, log is corrupt", seq))
		}

		entry := Entry{Type: entryType, Sequence: seq}
		switch entryType {
		case EntryRecord:
			var w recordWire
			if err := json.Unmarshal(payload, &w); err != nil {
				return nil, storage.Wrap(storage.KindDeserialization, fmt.Sprintf("decode record entry %d", seq), err)
			}
			rec, err := recordFromWire(w)
			if err != nil {
				return nil, err
			}
			entry.Record = &rec
		case EntryUser:
			var w userWire
			if err := json.Unmarshal(payload, &w); err != nil {
				return nil, storage.Wrap(storage.KindDeserialization, fmt.Sprintf("decode user entry %d", seq), err)
			}
			u, err := userFromWire(w)
			if err != nil {
				return nil, err
			}
			entry.User = &u
		default:
			return nil, storage.New(storage.KindValidationFailed, fmt.Sprintf("unknown entry type %d at sequence %d", entryType, seq))
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// Truncate discards all entries, leaving an empty (magic-only) log.
// Called after a successful snapshot compaction, once the entries it
// covers are durably reflected in the new snapshot.
func Truncate(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("wal: truncate %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(Magic[:]); err != nil {
		return fmt.Errorf("wal: rewrite magic after truncate: %w", err)
	}
	return f.Sync()
}

// Delete removes the WAL file entirely.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("wal: delete %s: %w", path, err)
	}
	return nil
}
