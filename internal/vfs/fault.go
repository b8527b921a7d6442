package vfs

import (
	"io"
	"os"
)

// Fault wraps an [FS] and injects failures into write-path operations, for
// exercising the store's crash-recovery code without touching a real disk.
// It is a deliberately small relative of the teacher's own chaos/crash
// harness: the store only needs two failure shapes to cover its testable
// crash properties — an outright I/O error after some number of writes, and
// a torn (short) final write — so that's all this type injects.
type Fault struct {
	fs FS

	// FailAfterWrites, if > 0, makes the N-th call to a write method (Write,
	// WriteAt on any open faultFile) across the lifetime of this Fault, and
	// every write call after it, return io.ErrClosedPipe instead of
	// succeeding. 0 disables this fault.
	FailAfterWrites int

	// TornBytes, if > 0, is the number of bytes [Fault.Crash] cuts from the
	// tail of the most recently opened file, simulating a torn tail record
	// left by a crash mid-fsync.
	TornBytes int

	writeCount int
	lastFile   *faultFile
}

// NewFault wraps fs with fault injection. A freshly constructed [Fault]
// behaves identically to fs until its fields are set.
func NewFault(fs FS) *Fault {
	return &Fault{fs: fs}
}

func (f *Fault) Open(path string) (File, error) {
	inner, err := f.fs.Open(path)
	if err != nil {
		return nil, err
	}
	return f.wrap(inner), nil
}

func (f *Fault) Create(path string) (File, error) {
	inner, err := f.fs.Create(path)
	if err != nil {
		return nil, err
	}
	return f.wrap(inner), nil
}

func (f *Fault) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	inner, err := f.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}
	return f.wrap(inner), nil
}

func (f *Fault) wrap(inner File) *faultFile {
	ff := &faultFile{File: inner, owner: f}
	f.lastFile = ff
	return ff
}

func (f *Fault) ReadFile(path string) ([]byte, error) { return f.fs.ReadFile(path) }

func (f *Fault) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return f.fs.WriteFileAtomic(path, data, perm)
}

func (f *Fault) ReadDir(path string) ([]os.DirEntry, error) { return f.fs.ReadDir(path) }
func (f *Fault) MkdirAll(path string, perm os.FileMode) error {
	return f.fs.MkdirAll(path, perm)
}
func (f *Fault) Stat(path string) (os.FileInfo, error) { return f.fs.Stat(path) }
func (f *Fault) Exists(path string) (bool, error)      { return f.fs.Exists(path) }
func (f *Fault) Remove(path string) error              { return f.fs.Remove(path) }
func (f *Fault) RemoveAll(path string) error            { return f.fs.RemoveAll(path) }
func (f *Fault) Rename(oldpath, newpath string) error {
	return f.fs.Rename(oldpath, newpath)
}

// Crash simulates a power loss: if TornBytes > 0, it truncates the tail of
// the file most recently opened through this Fault by that many bytes,
// modeling a write that
// made it to the page cache but was never durably flushed before the crash.
// Call this after the operation under test has returned, in place of a
// clean Close, to assert the store recovers correctly from the wreckage.
func (f *Fault) Crash() error {
	if f.TornBytes <= 0 || f.lastFile == nil {
		return nil
	}

	info, err := f.lastFile.File.Stat()
	if err != nil {
		return err
	}

	newSize := info.Size() - int64(f.TornBytes)
	if newSize < 0 {
		newSize = 0
	}

	return f.lastFile.File.Truncate(newSize)
}

// faultFile wraps a [File] so writes can be intercepted by the owning
// [Fault].
type faultFile struct {
	File
	owner *Fault
}

func (ff *faultFile) Write(p []byte) (int, error) {
	if err := ff.owner.checkWriteFault(); err != nil {
		return 0, err
	}
	return ff.File.Write(p)
}

func (ff *faultFile) WriteAt(p []byte, off int64) (int, error) {
	if err := ff.owner.checkWriteFault(); err != nil {
		return 0, err
	}
	return ff.File.WriteAt(p, off)
}

func (f *Fault) checkWriteFault() error {
	if f.FailAfterWrites <= 0 {
		return nil
	}

	f.writeCount++
	if f.writeCount >= f.FailAfterWrites {
		return io.ErrClosedPipe
	}

	return nil
}

var _ FS = (*Fault)(nil)
