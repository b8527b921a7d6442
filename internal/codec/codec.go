// Package codec implements the wire format for vecstore's two on-disk
// files: the fixed-width file header shared by both files, and the
// append-only log record format used by the data log.
//
// All multi-byte integer fields are big-endian; vector bytes are raw
// IEEE-754 float32 in host (native) order, never byte-swapped by this
// package.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// HeaderSize is the fixed size in bytes of the header shared by vectors.bin
// and data.log.
const HeaderSize = 32

// Magic is the fixed 8-byte ASCII tag written at the start of both files.
const Magic = "VSTR0001"

// Version is the only format version this package understands.
const Version uint32 = 1

// ErrCorrupt indicates the header or a record failed a structural or
// checksum check. It wraps a human-readable reason; callers should treat
// any ErrCorrupt as fatal to opening the store (see spec §7, Corruption).
var ErrCorrupt = errors.New("vecstore: corrupt data")

// corruptf builds an error that wraps [ErrCorrupt] with a specific reason.
func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

// Header is the 32-byte structure present at the start of vectors.bin and
// data.log.
type Header struct {
	Version   uint32
	Dimension uint32
}

// EncodeHeader renders h as the 32-byte on-disk header: 8-byte magic,
// 4-byte version (big-endian), 4-byte dimension (big-endian), and 16
// reserved zero bytes.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], Magic)
	binary.BigEndian.PutUint32(buf[8:12], h.Version)
	binary.BigEndian.PutUint32(buf[12:16], h.Dimension)
	// buf[16:32] stays zero: reserved.
	return buf
}

// DecodeHeader parses a 32-byte header, validating magic and version.
// Returns [ErrCorrupt] if buf is short, the magic doesn't match, or the
// version is unsupported.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, corruptf("header truncated: got %d bytes, want %d", len(buf), HeaderSize)
	}

	if string(buf[0:8]) != Magic {
		return Header{}, corruptf("bad magic: %q", buf[0:8])
	}

	version := binary.BigEndian.Uint32(buf[8:12])
	if version != Version {
		return Header{}, corruptf("unsupported version: %d", version)
	}

	dimension := binary.BigEndian.Uint32(buf[12:16])

	return Header{Version: version, Dimension: dimension}, nil
}

// RecordHeaderSize is the size in bytes of a log record's fixed-width
// prefix, before the variable-length key and value.
const RecordHeaderSize = 4 + 4 + 4 + 4 + 1 // checksum | id | key_len | val_len | tombstone

// Record is a single data.log entry: a key/value pair tagged with the
// vector slot id it refers to, and whether it marks a deletion.
type Record struct {
	ID        uint32
	Key       []byte
	Value     []byte
	Tombstone bool
}

// Encode renders r in the wire format
// checksum(4)|id(4)|key_len(4)|val_len(4)|tombstone(1)|key|val, with the
// CRC32 (IEEE) computed over everything from id through the end of val.
func Encode(r Record) []byte {
	total := RecordHeaderSize + len(r.Key) + len(r.Value)
	buf := make([]byte, total)

	binary.BigEndian.PutUint32(buf[4:8], r.ID)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(r.Key)))
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(r.Value)))
	if r.Tombstone {
		buf[16] = 1
	} else {
		buf[16] = 0
	}
	copy(buf[17:17+len(r.Key)], r.Key)
	copy(buf[17+len(r.Key):], r.Value)

	checksum := crc32.ChecksumIEEE(buf[4:])
	binary.BigEndian.PutUint32(buf[0:4], checksum)

	return buf
}

// ErrTorn indicates buf does not contain a complete, checksum-valid record:
// either it was cut short (fewer bytes than the declared lengths demand) or
// its CRC doesn't match. Callers (the log manager's Scan) use this to
// identify a torn tail per spec §4.3.
var ErrTorn = errors.New("vecstore: torn record")

// Decode parses a single record from the front of buf. It returns the
// decoded record and the number of bytes it consumed. If buf is shorter
// than the record's declared total length, or the CRC does not match,
// Decode returns [ErrTorn] — this is the expected, recoverable outcome of
// reading into a crash-torn tail, not a panic-worthy condition.
func Decode(buf []byte) (Record, int, error) {
	if len(buf) < RecordHeaderSize {
		return Record{}, 0, ErrTorn
	}

	keyLen := binary.BigEndian.Uint32(buf[8:12])
	valLen := binary.BigEndian.Uint32(buf[12:16])

	total := RecordHeaderSize + int(keyLen) + int(valLen)
	if total < 0 || len(buf) < total {
		return Record{}, 0, ErrTorn
	}

	declared := binary.BigEndian.Uint32(buf[0:4])
	actual := crc32.ChecksumIEEE(buf[4:total])
	if declared != actual {
		return Record{}, 0, ErrTorn
	}

	tombstone := buf[16] != 0

	key := make([]byte, keyLen)
	copy(key, buf[17:17+keyLen])

	val := make([]byte, valLen)
	copy(val, buf[17+keyLen:total])

	return Record{
		ID:        binary.BigEndian.Uint32(buf[4:8]),
		Key:       key,
		Value:     val,
		Tombstone: tombstone,
	}, total, nil
}
