// Package mmap maps files into memory with shared read-write access.
//
// A Map never changes size. Growing a mapped file means truncating the file
// and creating a second Map; slices taken from the first stay valid until it
// is closed.
package mmap

// Map represents a memory-mapped file region.
type Map struct {
	data []byte // Mapped memory region
	fd   int    // File descriptor the region was mapped from
}

// Data returns the mapped byte slice.
func (m *Map) Data() []byte {
	return m.data
}

// Size returns the mapped size.
func (m *Map) Size() int64 {
	return int64(len(m.data))
}

// Fd returns the file descriptor.
func (m *Map) Fd() int {
	return m.fd
}

// Error represents an mmap error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "mmap: " + e.Op + ": " + e.Err.Error()
	}
	return "mmap: " + e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Common errors
var (
	ErrInvalidSize  = &Error{Op: "invalid size"}
	ErrInvalidRange = &Error{Op: "invalid range"}
	ErrNotMapped    = &Error{Op: "not mapped"}
)
