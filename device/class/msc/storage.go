package msc

import (
	"io"
	"os"
)

// Storage is the block-device backend a MSC instance serves over Bulk-Only
// Transport. Every method is called from the same Poll cycle that owns the
// rest of the device core, so implementations must not block or spawn
// goroutines of their own.
type Storage interface {
	// BlockSize returns the size of one block in bytes.
	BlockSize() uint32

	// BlockCount returns the total number of blocks.
	BlockCount() uint64

	// Read fills buf with blocks starting at lba, returning the number of
	// blocks actually read.
	Read(lba uint64, blocks uint32, buf []byte) (uint32, error)

	// Write stores blocks from buf starting at lba, returning the number
	// of blocks actually written.
	Write(lba uint64, blocks uint32, buf []byte) (uint32, error)

	// Sync flushes any buffered writes.
	Sync() error

	// IsReadOnly reports whether Write is rejected unconditionally.
	IsReadOnly() bool

	// IsRemovable reports whether the media can be ejected.
	IsRemovable() bool

	// IsPresent reports whether media is currently loaded.
	IsPresent() bool

	// Eject unloads removable media. It returns an error for fixed media
	// or if ejection is refused.
	Eject() error
}

// MemoryStorage is a RAM-backed Storage, useful for demos and tests where
// persistence across a process lifetime doesn't matter.
type MemoryStorage struct {
	data      []byte
	blockSize uint32
	readOnly  bool
	removable bool
	present   bool
}

// NewMemoryStorage allocates a RAM disk of size bytes addressed in
// blockSize chunks. Media starts present and fixed.
func NewMemoryStorage(size uint64, blockSize uint32) *MemoryStorage {
	return &MemoryStorage{data: make([]byte, size), blockSize: blockSize, present: true}
}

func (m *MemoryStorage) BlockSize() uint32  { return m.blockSize }
func (m *MemoryStorage) BlockCount() uint64 { return uint64(len(m.data)) / uint64(m.blockSize) }

func (m *MemoryStorage) Read(lba uint64, blocks uint32, buf []byte) (uint32, error) {
	if !m.present {
		return 0, io.EOF
	}
	offset := lba * uint64(m.blockSize)
	length := uint64(blocks) * uint64(m.blockSize)
	if offset+length > uint64(len(m.data)) {
		return 0, io.EOF
	}
	if uint64(len(buf)) < length {
		return 0, io.ErrShortBuffer
	}
	copy(buf, m.data[offset:offset+length])
	return blocks, nil
}

func (m *MemoryStorage) Write(lba uint64, blocks uint32, buf []byte) (uint32, error) {
	if !m.present {
		return 0, io.EOF
	}
	if m.readOnly {
		return 0, os.ErrPermission
	}
	offset := lba * uint64(m.blockSize)
	length := uint64(blocks) * uint64(m.blockSize)
	if offset+length > uint64(len(m.data)) {
		return 0, io.EOF
	}
	if uint64(len(buf)) < length {
		return 0, io.ErrShortBuffer
	}
	copy(m.data[offset:offset+length], buf)
	return blocks, nil
}

// Sync is a no-op; a RAM disk has nothing to flush.
func (m *MemoryStorage) Sync() error { return nil }

func (m *MemoryStorage) IsReadOnly() bool  { return m.readOnly }
func (m *MemoryStorage) IsRemovable() bool { return m.removable }
func (m *MemoryStorage) IsPresent() bool   { return m.present }

// SetReadOnly toggles whether Write is rejected.
func (m *MemoryStorage) SetReadOnly(readOnly bool) { m.readOnly = readOnly }

// SetRemovable toggles whether Eject is permitted.
func (m *MemoryStorage) SetRemovable(removable bool) { m.removable = removable }

// SetPresent forces the media-present state, e.g. to simulate reinserting
// media after Eject.
func (m *MemoryStorage) SetPresent(present bool) { m.present = present }

// Eject clears the present flag on removable media; fixed media refuses.
func (m *MemoryStorage) Eject() error {
	if !m.removable {
		return os.ErrPermission
	}
	m.present = false
	return nil
}

// FileStorage is a Storage backed by a disk image file, opened once at
// construction and read or written in place for the process lifetime.
type FileStorage struct {
	file      *os.File
	blockSize uint32
	size      uint64
	readOnly  bool
}

// NewFileStorage opens path as a fixed, non-removable disk image addressed
// in blockSize chunks. The image's current file size becomes its capacity.
func NewFileStorage(path string, blockSize uint32, readOnly bool) (*FileStorage, error) {
	flags := os.O_RDWR
	if readOnly {
		flags = os.O_RDONLY
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &FileStorage{file: file, blockSize: blockSize, size: uint64(stat.Size()), readOnly: readOnly}, nil
}

func (f *FileStorage) BlockSize() uint32  { return f.blockSize }
func (f *FileStorage) BlockCount() uint64 { return f.size / uint64(f.blockSize) }

func (f *FileStorage) Read(lba uint64, blocks uint32, buf []byte) (uint32, error) {
	offset := int64(lba * uint64(f.blockSize))
	length := int(blocks * f.blockSize)
	if uint64(offset)+uint64(length) > f.size {
		return 0, io.EOF
	}
	if len(buf) < length {
		return 0, io.ErrShortBuffer
	}
	n, err := f.file.ReadAt(buf[:length], offset)
	if err != nil && err != io.EOF {
		return 0, err
	}
	return uint32(n) / f.blockSize, nil
}

func (f *FileStorage) Write(lba uint64, blocks uint32, buf []byte) (uint32, error) {
	if f.readOnly {
		return 0, os.ErrPermission
	}
	offset := int64(lba * uint64(f.blockSize))
	length := int(blocks * f.blockSize)
	if uint64(offset)+uint64(length) > f.size {
		return 0, io.EOF
	}
	if len(buf) < length {
		return 0, io.ErrShortBuffer
	}
	n, err := f.file.WriteAt(buf[:length], offset)
	if err != nil {
		return 0, err
	}
	return uint32(n) / f.blockSize, nil
}

// Sync flushes the image file to disk; a no-op when read-only.
func (f *FileStorage) Sync() error {
	if f.readOnly {
		return nil
	}
	return f.file.Sync()
}

func (f *FileStorage) IsReadOnly() bool  { return f.readOnly }
func (f *FileStorage) IsRemovable() bool { return false }
func (f *FileStorage) IsPresent() bool   { return true }

// Eject always fails; a file-backed image has no removal mechanism.
func (f *FileStorage) Eject() error { return os.ErrPermission }

// Close releases the underlying file descriptor.
func (f *FileStorage) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
