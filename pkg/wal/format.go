// Copyright 2025 UkweliDB Authors
//
// Package wal implements the write-ahead log that durably records every
// mutation between snapshots: new records and new user registrations.
// Each entry is self-delimiting (a fixed header carrying a type tag and
// payload length, followed by a JSON payload) so a reader can replay the
// log without needing to know in advance how many entries it holds, and
// can detect and stop at a truncated final entry left by a crash
// mid-write.
package wal

import "encoding/binary"

// Magic identifies a UkweliDB WAL file.
var Magic = [4]byte{'A', 'P', 'N', 'D'}

// EntryType distinguishes the two kinds of WAL entries.
type EntryType uint8

const (
	// EntryRecord carries an appended ledger record.
	EntryRecord EntryType = 1
	// EntryUser carries a user registration.
	EntryUser EntryType = 2
)

// entryHeaderSize is the fixed-width prefix before every entry's JSON
// payload: magic(4) + type(1) + sequence(8) + payload_len(4) +
// payload_checksum(32) = 49 bytes.
const entryHeaderSize = 4 + 1 + 8 + 4 + 32

var byteOrder = binary.LittleEndian
