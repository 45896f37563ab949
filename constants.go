package mapkv

import (
	"strings"

	"github.com/Giulio2002/mapkv/engine"
)

// Flags control durability, locking and reader-slot behavior. They are fixed
// when the Store is opened.
type Flags uint

const (
	// Async relaxes flush-on-commit durability. A crash may lose the most
	// recent commits but never corrupts the database.
	Async Flags = 1 << iota

	// NoLocking disables the engine's internal concurrency control. The
	// caller must serialize all access to the Store.
	NoLocking

	// NoThreadLocalStorage disables thread-local transaction slots.
	NoThreadLocalStorage
)

// DefaultFlags is tuned for a single goroutine doing as many writes as
// possible.
const DefaultFlags = Async | NoLocking | NoThreadLocalStorage

// Size constants
const (
	KiB int64 = 1 << 10
	MiB int64 = 1 << 20
	GiB int64 = 1 << 30

	// DefaultMapSize is the initial map capacity of a Store
	DefaultMapSize = GiB
)

// DefaultMode is the permission used for files the engine creates.
const DefaultMode = 0664

// envFlags translates Store flags into engine environment flags.
func (f Flags) envFlags() uint {
	flags := engine.NoReadAhead | engine.NoMemInit
	if f&Async != 0 {
		flags |= engine.NoSync | engine.NoMetaSync
	}
	if f&NoLocking != 0 {
		flags |= engine.NoLock
	}
	if f&NoThreadLocalStorage != 0 {
		flags |= engine.NoTLS
	}
	return flags
}

func (f Flags) String() string {
	if f == 0 {
		return "Durable"
	}
	var parts []string
	if f&Async != 0 {
		parts = append(parts, "Async")
	}
	if f&NoLocking != 0 {
		parts = append(parts, "NoLocking")
	}
	if f&NoThreadLocalStorage != 0 {
		parts = append(parts, "NoThreadLocalStorage")
	}
	return strings.Join(parts, "|")
}
