//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

var pageSize = int64(os.Getpagesize())

// PageSize returns the OS page size mappings are aligned to.
func PageSize() int64 {
	return pageSize
}

// New maps the first length bytes of f with shared read-write access. The
// file must already be at least length bytes long.
func New(f *os.File, length int64) (*Map, error) {
	if length <= 0 || int64(int(length)) != length {
		return nil, ErrInvalidSize
	}

	fd := int(f.Fd())
	data, err := unix.Mmap(fd, 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &Error{Op: "mmap", Err: err}
	}
	return &Map{data: data, fd: fd}, nil
}

// Sync flushes the whole mapping to disk synchronously.
func (m *Map) Sync() error {
	if m.data == nil {
		return ErrNotMapped
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

// SyncRange flushes [offset, offset+length) to disk. The start is rounded
// down to a page boundary as msync requires.
func (m *Map) SyncRange(offset, length int64, async bool) error {
	if m.data == nil {
		return ErrNotMapped
	}
	if offset < 0 || length < 0 || offset+length > m.Size() {
		return ErrInvalidRange
	}
	if length == 0 {
		return nil
	}
	start := offset &^ (pageSize - 1)
	flags := unix.MS_SYNC
	if async {
		flags = unix.MS_ASYNC
	}
	if err := unix.Msync(m.data[start:offset+length], flags); err != nil {
		return &Error{Op: "msync", Err: err}
	}
	return nil
}

// AdviseRandom hints that pages will be accessed randomly, which disables
// readahead.
func (m *Map) AdviseRandom() error {
	if m.data == nil {
		return ErrNotMapped
	}
	return unix.Madvise(m.data, unix.MADV_RANDOM)
}

// Close releases the memory mapping. Slices taken from Data must not be
// used afterwards.
func (m *Map) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	if err != nil {
		return &Error{Op: "munmap", Err: err}
	}
	return nil
}

// AlignSize rounds size up to a multiple of the page size.
func AlignSize(size int64) int64 {
	return (size + pageSize - 1) &^ (pageSize - 1)
}
