// Package logfile manages data.log: the append-only record log.
package logfile

import (
	"errors"
	"fmt"
	"os"

	"github.com/driftlock/vecstore/internal/codec"
	"github.com/driftlock/vecstore/internal/vfs"
)

// File owns data.log. It never rewrites records in place; every logical
// update or delete is a new append.
type File struct {
	fs   vfs.FS
	path string
	file vfs.File
	end  int64 // current end-of-file offset, maintained to avoid repeated Stat calls
}

// Open opens (creating if necessary) the log file at path, writing a fresh
// header if the file is new.
func Open(fsys vfs.FS, path string, dimension uint32) (*File, error) {
	exists, err := fsys.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("logfile: checking existence: %w", err)
	}

	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logfile: opening %s: %w", path, err)
	}

	lf := &File{fs: fsys, path: path, file: f}

	if !exists {
		buf := codec.EncodeHeader(codec.Header{Version: codec.Version, Dimension: dimension})
		if _, err := f.WriteAt(buf, 0); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("logfile: writing header: %w", err)
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("logfile: syncing header: %w", err)
		}
		lf.end = codec.HeaderSize
		return lf, nil
	}

	hdrBuf := make([]byte, codec.HeaderSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("logfile: reading header: %w", err)
	}

	hdr, err := codec.DecodeHeader(hdrBuf)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if hdr.Dimension != dimension {
		_ = f.Close()
		return nil, fmt.Errorf("%w: data.log dimension %d, want %d", codec.ErrCorrupt, hdr.Dimension, dimension)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("logfile: stat: %w", err)
	}
	lf.end = info.Size()

	return lf, nil
}

// End returns the current end-of-file offset (where the next Append will
// land).
func (f *File) End() int64 { return f.end }

// Append writes r at the current end of the log and returns its offset.
// Flushes and syncs before returning.
func (f *File) Append(r codec.Record) (int64, error) {
	buf := codec.Encode(r)

	offset := f.end
	if _, err := f.file.WriteAt(buf, offset); err != nil {
		return 0, fmt.Errorf("logfile: append write: %w", err)
	}

	if err := f.file.Sync(); err != nil {
		return 0, fmt.Errorf("logfile: append sync: %w", err)
	}

	f.end = offset + int64(len(buf))

	return offset, nil
}

// ReadAt reads and decodes the single record at offset.
func (f *File) ReadAt(offset int64) (codec.Record, error) {
	// We don't know the record's length up front; read a generous prefix and
	// grow if the declared lengths demand more.
	const initialRead = 4096

	size := f.end - offset
	if size <= 0 {
		return codec.Record{}, fmt.Errorf("logfile: offset %d at or past end %d", offset, f.end)
	}

	readLen := int64(initialRead)
	if readLen > size {
		readLen = size
	}

	for {
		buf := make([]byte, readLen)
		n, err := f.file.ReadAt(buf, offset)
		if err != nil && n == 0 {
			return codec.Record{}, fmt.Errorf("logfile: read at %d: %w", offset, err)
		}
		buf = buf[:n]

		rec, _, decErr := codec.Decode(buf)
		if decErr == nil {
			return rec, nil
		}

		if !errors.Is(decErr, codec.ErrTorn) {
			return codec.Record{}, decErr
		}

		// Might just need more bytes (declared length exceeds what we read),
		// or it's a genuinely torn tail (declared length exceeds file size).
		if readLen >= size {
			return codec.Record{}, fmt.Errorf("logfile: torn record at %d: %w", offset, codec.ErrTorn)
		}

		readLen *= 2
		if readLen > size {
			readLen = size
		}
	}
}

// ScanFunc is called once per record found during a [File.Scan], with the
// record's starting offset.
type ScanFunc func(offset int64, rec codec.Record) error

// Scan streams records from just after the header until EOF or the first
// torn record. It returns the offset of the first torn record (or f.end if
// none was found, meaning the log ended cleanly).
func (f *File) Scan(fn ScanFunc) (tornAt int64, err error) {
	offset := int64(codec.HeaderSize)

	for offset < f.end {
		remaining := f.end - offset

		readLen := remaining
		const cap32MB = 32 << 20
		if readLen > cap32MB {
			readLen = cap32MB
		}

		buf := make([]byte, readLen)
		n, readErr := f.file.ReadAt(buf, offset)
		if readErr != nil && n == 0 {
			return offset, fmt.Errorf("logfile: scan read at %d: %w", offset, readErr)
		}
		buf = buf[:n]

		rec, consumed, decErr := codec.Decode(buf)
		if decErr != nil {
			if errors.Is(decErr, codec.ErrTorn) {
				return offset, nil
			}
			return offset, decErr
		}

		if err := fn(offset, rec); err != nil {
			return offset, err
		}

		offset += int64(consumed)
	}

	return f.end, nil
}

// TruncateTo shrinks the log to exactly offset bytes, discarding a torn
// tail found during recovery.
func (f *File) TruncateTo(offset int64) error {
	if err := f.file.Truncate(offset); err != nil {
		return fmt.Errorf("logfile: truncate: %w", err)
	}

	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("logfile: truncate sync: %w", err)
	}

	f.end = offset

	return nil
}

// Close closes the underlying file, syncing first.
func (f *File) Close() error {
	if err := f.file.Sync(); err != nil {
		_ = f.file.Close()
		return fmt.Errorf("logfile: sync on close: %w", err)
	}

	if err := f.file.Close(); err != nil {
		return fmt.Errorf("logfile: close: %w", err)
	}

	return nil
}
