// Copyright 2025 UkweliDB Authors
//
// Package storage provides the tagged error type shared by pkg/snapshot
// and pkg/wal: both are on-disk codecs over the same family of failure
// modes (bad magic, unsupported version, checksum mismatch, malformed
// payload), and callers like pkg/recovery need to tell a checksum
// failure apart from every other failure without string-matching an
// error message.
package storage

import "fmt"

// Kind classifies a storage Error for programmatic handling via
// errors.As.
type Kind int

const (
	// KindInvalidMagic: the file's leading magic bytes don't match what
	// this codec writes. (A bad per-entry magic inside a WAL ends replay
	// without an error.)
	KindInvalidMagic Kind = iota
	// KindUnsupportedVersion: the file declares a major version this
	// codec doesn't know how to read.
	KindUnsupportedVersion
	// KindChecksumMismatch: a body, entry payload, or whole-file
	// integrity checksum didn't recompute to the stored value.
	KindChecksumMismatch
	// KindDeserialization: the bytes inside an otherwise well-formed
	// envelope failed to decode (bad JSON, bad hex, wrong signature
	// length, and similar).
	KindDeserialization
	// KindValidationFailed: a structural invariant other than a
	// checksum failed (offsets out of range, record_count mismatch,
	// truncated header region, and similar).
	KindValidationFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidMagic:
		return "InvalidMagic"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	case KindChecksumMismatch:
		return "ChecksumMismatch"
	case KindDeserialization:
		return "Deserialization"
	case KindValidationFailed:
		return "ValidationFailed"
	default:
		return "Unknown"
	}
}

// Error is the tagged error type returned by pkg/snapshot and pkg/wal.
// Detail carries a human-readable reason; cause, when present, is the
// underlying error (a decode failure, an I/O error) %w-wrapped so
// errors.Is/As still see through it.
type Error struct {
	Kind   Kind
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("storage: %s", e.Kind)
	}
	return fmt.Sprintf("storage: %s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a Kind-tagged Error with no wrapped cause.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap constructs a Kind-tagged Error wrapping cause, appending cause's
// message to detail so %v output still carries the original failure.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf("%s: %v", detail, cause), cause: cause}
}
