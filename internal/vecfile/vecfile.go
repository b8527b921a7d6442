// Package vecfile manages vectors.bin: the append-only vector slot file plus
// its in-memory mirror.
package vecfile

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/driftlock/vecstore/internal/codec"
	"github.com/driftlock/vecstore/internal/vfs"
)

// File owns vectors.bin and the in-memory mirror of every slot it holds.
// All positional operations are relative to the end of the 32-byte header.
type File struct {
	fs   vfs.FS
	path string
	file vfs.File

	dimension uint32
	slotBytes int64 // dimension * 4

	// mirror holds slotCount*dimension float32s, flattened slot-major.
	mirror []float32
}

// Open opens (creating if necessary) the vector file at path, writing a
// fresh header if the file is new, and loads the existing slots into the
// in-memory mirror.
func Open(fsys vfs.FS, path string, dimension uint32) (*File, error) {
	exists, err := fsys.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("vecfile: checking existence: %w", err)
	}

	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("vecfile: opening %s: %w", path, err)
	}

	vf := &File{
		fs:        fsys,
		path:      path,
		file:      f,
		dimension: dimension,
		slotBytes: int64(dimension) * 4,
	}

	if !exists {
		if err := vf.writeHeader(dimension); err != nil {
			_ = f.Close()
			return nil, err
		}
		return vf, nil
	}

	if err := vf.loadHeaderAndMirror(); err != nil {
		_ = f.Close()
		return nil, err
	}

	return vf, nil
}

func (f *File) writeHeader(dimension uint32) error {
	buf := codec.EncodeHeader(codec.Header{Version: codec.Version, Dimension: dimension})
	if _, err := f.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("vecfile: writing header: %w", err)
	}
	return f.file.Sync()
}

func (f *File) loadHeaderAndMirror() error {
	hdrBuf := make([]byte, codec.HeaderSize)
	if _, err := f.file.ReadAt(hdrBuf, 0); err != nil {
		return fmt.Errorf("vecfile: reading header: %w", err)
	}

	hdr, err := codec.DecodeHeader(hdrBuf)
	if err != nil {
		return err
	}

	if hdr.Dimension != f.dimension {
		return fmt.Errorf("%w: vectors.bin dimension %d, want %d", codec.ErrCorrupt, hdr.Dimension, f.dimension)
	}

	info, err := f.file.Stat()
	if err != nil {
		return fmt.Errorf("vecfile: stat: %w", err)
	}

	dataSize := info.Size() - codec.HeaderSize
	if dataSize < 0 {
		dataSize = 0
	}

	slotCount := dataSize / f.slotBytes
	alignedSize := slotCount * f.slotBytes
	if alignedSize != dataSize {
		// Torn slot from a crash mid-append; truncate it away (spec §4.5 step 2).
		if err := f.file.Truncate(codec.HeaderSize + alignedSize); err != nil {
			return fmt.Errorf("vecfile: truncating torn slot: %w", err)
		}
	}

	f.mirror = make([]float32, slotCount*int64(f.dimension))
	raw := make([]byte, alignedSize)
	if alignedSize > 0 {
		if _, err := f.file.ReadAt(raw, codec.HeaderSize); err != nil {
			return fmt.Errorf("vecfile: reading slots: %w", err)
		}
	}

	for i := range f.mirror {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		f.mirror[i] = math.Float32frombits(bits)
	}

	return nil
}

// Dimension returns D.
func (f *File) Dimension() uint32 { return f.dimension }

// SlotCount returns the number of durable vector slots: (file_size -
// header_size) / (D*4).
func (f *File) SlotCount() uint32 {
	return uint32(int64(len(f.mirror)) / int64(f.dimension))
}

// Append writes vec at the current end of the file and returns its new slot
// id. The write is flushed (full sync, since file length changed) before
// returning, upholding I1 (Vector First).
func (f *File) Append(vec []float32) (uint32, error) {
	if uint32(len(vec)) != f.dimension {
		return 0, fmt.Errorf("vecfile: vector has %d dims, want %d", len(vec), f.dimension)
	}

	id := f.SlotCount()
	offset := codec.HeaderSize + int64(id)*f.slotBytes

	raw := encodeVector(vec)
	if _, err := f.file.WriteAt(raw, offset); err != nil {
		return 0, fmt.Errorf("vecfile: append write: %w", err)
	}

	if err := f.file.Sync(); err != nil {
		return 0, fmt.Errorf("vecfile: append sync: %w", err)
	}

	f.mirror = append(f.mirror, vec...)

	return id, nil
}

// Overwrite rewrites the slot at id in place with vec. Used for updating an
// existing key's vector and for compaction rewrites. id must already be a
// durable slot (id < SlotCount()).
func (f *File) Overwrite(id uint32, vec []float32) error {
	if uint32(len(vec)) != f.dimension {
		return fmt.Errorf("vecfile: vector has %d dims, want %d", len(vec), f.dimension)
	}

	if id >= f.SlotCount() {
		return fmt.Errorf("vecfile: overwrite of id %d out of range (slot_count=%d)", id, f.SlotCount())
	}

	offset := codec.HeaderSize + int64(id)*f.slotBytes
	raw := encodeVector(vec)

	if _, err := f.file.WriteAt(raw, offset); err != nil {
		return fmt.Errorf("vecfile: overwrite write: %w", err)
	}

	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("vecfile: overwrite sync: %w", err)
	}

	copy(f.mirror[int64(id)*int64(f.dimension):], vec)

	return nil
}

// Read returns a copy of the vector at id, read positionally from disk. The
// hot path (search) reads the mirror directly instead; this is for startup
// and compaction verification only.
func (f *File) Read(id uint32) ([]float32, error) {
	if id >= f.SlotCount() {
		return nil, fmt.Errorf("vecfile: read of id %d out of range (slot_count=%d)", id, f.SlotCount())
	}

	offset := codec.HeaderSize + int64(id)*f.slotBytes
	raw := make([]byte, f.slotBytes)
	if _, err := f.file.ReadAt(raw, offset); err != nil {
		return nil, fmt.Errorf("vecfile: read: %w", err)
	}

	return decodeVector(raw), nil
}

// Mirror returns the flat, slot-major in-memory vector mirror for slot id.
// The returned slice aliases File's internal storage and must not be
// retained past the next mutating call.
func (f *File) Mirror(id uint32) []float32 {
	start := int64(id) * int64(f.dimension)
	return f.mirror[start : start+int64(f.dimension)]
}

// TruncateTo shrinks the file (and mirror) to exactly count slots. Used by
// the store's Put to roll back an append whose log record was not written.
func (f *File) TruncateTo(count uint32) error {
	size := codec.HeaderSize + int64(count)*f.slotBytes
	if err := f.file.Truncate(size); err != nil {
		return fmt.Errorf("vecfile: truncate: %w", err)
	}

	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("vecfile: truncate sync: %w", err)
	}

	f.mirror = f.mirror[:int64(count)*int64(f.dimension)]

	return nil
}

// Close closes the underlying file, syncing first.
func (f *File) Close() error {
	if err := f.file.Sync(); err != nil {
		_ = f.file.Close()
		return fmt.Errorf("vecfile: sync on close: %w", err)
	}

	if err := f.file.Close(); err != nil {
		return fmt.Errorf("vecfile: close: %w", err)
	}

	return nil
}

func encodeVector(vec []float32) []byte {
	raw := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], math.Float32bits(v))
	}
	return raw
}

func decodeVector(raw []byte) []float32 {
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}
