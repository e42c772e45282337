package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ukwelidb/ukwelidb/pkg/ledger"
	"github.com/ukwelidb/ukwelidb/pkg/storage"
)

// Header is the fixed-size region at the start of every snapshot file.
type Header struct {
	Magic        [4]byte
	VersionMajor uint8
	VersionMinor uint8
	RecordCount  uint32
	CreatedTime  uint32
	LastModified uint32
	BodyOffset   uint32
	FooterOffset uint32
	BodyChecksum [32]byte
}

// serializableUser is the JSON-safe view of ledger.User.
type serializableUser struct {
	UserID       string   `json:"user_id"`
	VerifyingKey string   `json:"verifying_key"` // hex
	Roles        []string `json:"roles"`
}

// serializableRecord is the JSON-safe view of ledger.Record.
type serializableRecord struct {
	Index       uint64            `json:"index"`
	Payload     string            `json:"payload"`
	PayloadHash string            `json:"payload_hash"`
	Signers     []string          `json:"signers"`
	Signatures  map[string]string `json:"signatures"` // hex
	PrevHash    string            `json:"prev_hash"`
	RecordHash  string            `json:"record_hash"`
	Timestamp   uint64            `json:"timestamp"`
	Nonce       uint64            `json:"nonce"`
}

// Body holds every user and record persisted in a snapshot.
type Body struct {
	Users   []serializableUser   `json:"users"`
	Records []serializableRecord `json:"records"`
}

// Footer closes the file: an integrity hash over header and body and a restated
// file size, so a truncated write is detectable even if the header's
// body_checksum happens to still parse.
type Footer struct {
	IntegrityHash [32]byte `json:"-"`
	TotalFileSize uint64   `json:"total_file_size"`
}

type footerWire struct {
	IntegrityHash string `json:"integrity_hash"` // hex
	TotalFileSize uint64 `json:"total_file_size"`
}

func userToWire(u ledger.User) serializableUser {
	return serializableUser{
		UserID:       u.UserID,
		VerifyingKey: hex.EncodeToString(u.VerifyingKey),
		Roles:        u.RoleList(),
	}
}

func userFromWire(w serializableUser) (ledger.User, error) {
	key, err := hex.DecodeString(w.VerifyingKey)
	if err != nil {
		return ledger.User{}, storage.Wrap(storage.KindDeserialization, fmt.Sprintf("decode verifying_key for %q", w.UserID), err)
	}
	return ledger.NewUser(w.UserID, key, w.Roles...), nil
}

func recordToWire(r ledger.Record) serializableRecord {
	sigs := make(map[string]string, len(r.Signatures))
	for userID, sig := range r.Signatures {
		sigs[userID] = hex.EncodeToString(sig[:])
	}
	return serializableRecord{
		Index:       r.Index,
		Payload:     r.Payload,
		PayloadHash: r.PayloadHash,
		Signers:     r.Signers,
		Signatures:  sigs,
		PrevHash:    r.PrevHash,
		RecordHash:  r.RecordHash,
		Timestamp:   r.Timestamp,
		Nonce:       r.Nonce,
	}
}

func recordFromWire(w serializableRecord) (ledger.Record, error) {
	sigs := make(map[string][64]byte, len(w.Signatures))
	for userID, hexSig := range w.Signatures {
		raw, err := hex.DecodeString(hexSig)
		if err != nil {
			return ledger.Record{}, storage.Wrap(storage.KindDeserialization, fmt.Sprintf("decode signature for %q at record %d", userID, w.Index), err)
		}
		if len(raw) != 64 {
			return ledger.Record{}, storage.New(storage.KindDeserialization, fmt.Sprintf("signature for %q at record %d is %d bytes, want 64", userID, w.Index, len(raw)))
		}
		var fixed [64]byte
		copy(fixed[:], raw)
		sigs[userID] = fixed
	}
	return ledger.Record{
		Index:       w.Index,
		Payload:     w.Payload,
		PayloadHash: w.PayloadHash,
		Signers:     w.Signers,
		Signatures:  sigs,
		PrevHash:    w.PrevHash,
		RecordHash:  w.RecordHash,
		Timestamp:   w.Timestamp,
		Nonce:       w.Nonce,
	}, nil
}

// buildBody converts a ledger's full state into the JSON-safe Body.
func buildBody(l *ledger.Ledger) Body {
	users := l.Users()
	wireUsers := make([]serializableUser, 0, len(users))
	for _, u := range users {
		wireUsers = append(wireUsers, userToWire(u))
	}

	records := l.Records()
	wireRecords := make([]serializableRecord, 0, len(records))
	for _, r := range records {
		wireRecords = append(wireRecords, recordToWire(r))
	}

	return Body{Users: wireUsers, Records: wireRecords}
}

// LedgerFromBody reconstructs a ledger from a decoded Body. Read uses it
// after verifying a file; it is exported for callers that decode a Body
// themselves.
func LedgerFromBody(b Body) (*ledger.Ledger, error) {
	users := make([]ledger.User, 0, len(b.Users))
	for _, w := range b.Users {
		u, err := userFromWire(w)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	records := make([]ledger.Record, 0, len(b.Records))
	for _, w := range b.Records {
		r, err := recordFromWire(w)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return ledger.Reconstruct(users, records)
}

func encodeHeader(h Header) []byte {
	buf := make([]byte, HeaderRegionSize)
	copy(buf[0:4], h.Magic[:])
	buf[4] = h.VersionMajor
	buf[5] = h.VersionMinor
	byteOrder.PutUint32(buf[6:10], h.RecordCount)
	byteOrder.PutUint32(buf[10:14], h.CreatedTime)
	byteOrder.PutUint32(buf[14:18], h.LastModified)
	byteOrder.PutUint32(buf[18:22], h.BodyOffset)
	byteOrder.PutUint32(buf[22:26], h.FooterOffset)
	copy(buf[26:58], h.BodyChecksum[:])
	// buf[58:64] remains zero-padded reserved space.
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderRegionSize {
		return Header{}, storage.New(storage.KindValidationFailed, fmt.Sprintf("header region is %d bytes, want %d", len(buf), HeaderRegionSize))
	}
	var h Header
	copy(h.Magic[:], buf[0:4])
	if h.Magic != Magic {
		return Header{}, storage.New(storage.KindInvalidMagic, fmt.Sprintf("bad magic %q", h.Magic[:]))
	}
	h.VersionMajor = buf[4]
	h.VersionMinor = buf[5]
	h.RecordCount = byteOrder.Uint32(buf[6:10])
	h.CreatedTime = byteOrder.Uint32(buf[10:14])
	h.LastModified = byteOrder.Uint32(buf[14:18])
	h.BodyOffset = byteOrder.Uint32(buf[18:22])
	h.FooterOffset = byteOrder.Uint32(buf[22:26])
	copy(h.BodyChecksum[:], buf[26:58])
	return h, nil
}

// Write serializes l to path as a complete snapshot: header, JSON body,
// JSON footer. The write is NOT atomic by itself — pkg/recovery.Compact
// is responsible for the write-to-temp-then-rename dance that makes a
// snapshot replacement crash-safe.
func Write(path string, l *ledger.Ledger, now uint32) error {
	body := buildBody(l)
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("snapshot: marshal body: %w", err)
	}

	bodyChecksum := sha256.Sum256(bodyJSON)

	h := Header{
		Magic:        Magic,
		VersionMajor: VersionMajor,
		VersionMinor: VersionMinor,
		RecordCount:  uint32(l.Length()),
		CreatedTime:  now,
		LastModified: now,
		BodyOffset:   HeaderRegionSize,
		FooterOffset: HeaderRegionSize + uint32(len(bodyJSON)),
		BodyChecksum: bodyChecksum,
	}
	headerBytes := encodeHeader(h)

	integrityHash := sha256.New()
	integrityHash.Write(headerBytes)
	integrityHash.Write(bodyJSON)

	footer := footerWire{
		IntegrityHash: hex.EncodeToString(integrityHash.Sum(nil)),
	}
	// TotalFileSize depends on the footer's own encoded length, which
	// depends on TotalFileSize — so encode once to measure, then fix up.
	footerJSON, err := json.Marshal(footer)
	if err != nil {
		return fmt.Errorf("snapshot: marshal footer: %w", err)
	}
	footer.TotalFileSize = uint64(len(headerBytes) + len(bodyJSON) + len(footerJSON))
	footerJSON, err = json.Marshal(footer)
	if err != nil {
		return fmt.Errorf("snapshot: marshal footer: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(headerBytes); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}
	if _, err := f.Write(bodyJSON); err != nil {
		return fmt.Errorf("snapshot: write body: %w", err)
	}
	if _, err := f.Write(footerJSON); err != nil {
		return fmt.Errorf("snapshot: write footer: %w", err)
	}
	return f.Sync()
}

// Read loads and validates a snapshot file, returning the reconstructed
// ledger. It checks body_checksum, total_file_size and the header+body integrity_hash
// before handing anything back — a corrupted snapshot is rejected, never
// silently partially loaded.
func Read(path string) (*ledger.Ledger, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	if len(raw) < HeaderRegionSize {
		return nil, storage.New(storage.KindValidationFailed, "file shorter than header region")
	}

	headerBytes := raw[:HeaderRegionSize]
	h, err := decodeHeader(headerBytes)
	if err != nil {
		return nil, err
	}
	if h.VersionMajor != VersionMajor {
		return nil, storage.New(storage.KindUnsupportedVersion, fmt.Sprintf("major version %d.%d is unsupported", h.VersionMajor, h.VersionMinor))
	}
	if int(h.BodyOffset) != HeaderRegionSize {
		return nil, storage.New(storage.KindValidationFailed, fmt.Sprintf("unexpected body_offset %d", h.BodyOffset))
	}
	if int(h.FooterOffset) > len(raw) {
		return nil, storage.New(storage.KindValidationFailed, fmt.Sprintf("footer_offset %d beyond file length %d", h.FooterOffset, len(raw)))
	}

	bodyJSON := raw[h.BodyOffset:h.FooterOffset]
	bodyChecksum := sha256.Sum256(bodyJSON)
	if bodyChecksum != h.BodyChecksum {
		return nil, storage.New(storage.KindChecksumMismatch, "body_checksum mismatch, file is corrupt")
	}

	footerJSON := raw[h.FooterOffset:]
	var footer footerWire
	if err := json.Unmarshal(footerJSON, &footer); err != nil {
		return nil, storage.Wrap(storage.KindDeserialization, "decode footer", err)
	}
	if footer.TotalFileSize != uint64(len(raw)) {
		return nil, storage.New(storage.KindValidationFailed, fmt.Sprintf("total_file_size %d does not match on-disk size %d", footer.TotalFileSize, len(raw)))
	}

	integrityHash := sha256.New()
	integrityHash.Write(headerBytes)
	integrityHash.Write(bodyJSON)
	if hex.EncodeToString(integrityHash.Sum(nil)) != footer.IntegrityHash {
		return nil, storage.New(storage.KindChecksumMismatch, "integrity_hash mismatch, file is corrupt")
	}

	var body Body
	if err := json.Unmarshal(bodyJSON, &body); err != nil {
		return nil, storage.Wrap(storage.KindDeserialization, "decode body", err)
	}

	l, err := LedgerFromBody(body)
	if err != nil {
		return nil, storage.Wrap(storage.KindDeserialization, "reconstruct ledger", err)
	}
	if l.Length() != int(h.RecordCount) {
		return nil, storage.New(storage.KindValidationFailed, fmt.Sprintf("record_count %d does not match reconstructed length %d", h.RecordCount, l.Length()))
	}
	return l, nil
}
