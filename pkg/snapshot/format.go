// Copyright 2025 UkweliDB Authors
//
// Package snapshot implements the full-state persistence format: a
// versioned, checksummed file holding every user and record of a ledger
// at a point in time. It is the counterpart to pkg/wal, which only
// durable-logs the operations between snapshots.
//
// Layout (little-endian throughout):
//
//	[ 64-byte fixed header region ][ JSON body ][ JSON footer ]
//
// The header region is a constant size per format version so a reader
// can always locate the body without first parsing variable-length
// data. The body and footer are JSON — matching the teacher's own
// on-disk convention (pkg/ledger's original store used json.Marshal
// for every persisted value) rather than a binary codec, since nothing
// in the header needs the body to be fixed-width.
package snapshot

import "encoding/binary"

// Magic identifies a UkweliDB snapshot file.
var Magic = [4]byte{'U', 'K', 'W', 'L'}

const (
	// VersionMajor/VersionMinor are the current format version.
	VersionMajor uint8 = 1
	VersionMinor uint8 = 0

	// HeaderRegionSize is the fixed byte length reserved for the header,
	// zero-padded if the encoded fields are smaller.
	HeaderRegionSize = 64

	// headerEncodedSize is the number of bytes the header fields actually
	// occupy before padding. record_count, created_timestamp, and
	// last_modified are stored as uint32 (not uint64) purely to fit the
	// 64-byte region alongside the full 32-byte body checksum — see
	// DESIGN.md for the tradeoff this implies (record counts and header
	// timestamps wrap far beyond this library's realistic embedded-ledger
	// scale; per-record timestamps in pkg/ledger.Record remain uint64).
	headerEncodedSize = 4 /*magic*/ + 1 /*major*/ + 1 /*minor*/ +
		4 /*record_count*/ + 4 /*created*/ + 4 /*modified*/ +
		4 /*body_offset*/ + 4 /*footer_offset*/ + 32 /*body_checksum*/
)

var byteOrder = binary.LittleEndian
