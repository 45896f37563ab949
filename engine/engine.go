// Package engine defines the primitive surface a storage backend exposes to
// the mapkv store: environments, transactions, a table handle and point
// get/put.
//
// The surface mirrors the MDBX/LMDB C API closely. A backend is not expected
// to do anything clever beyond what that API does; in particular it is not
// responsible for retrying on MapFull, that is the caller's job.
//
// Ownership rules:
//   - An Env is owned by whoever called CreateEnv and must be closed once.
//   - A Txn is owned by whoever called BeginTxn. It is ended exactly once, by
//     Commit or Abort. Any call on an ended Txn is a contract violation; the
//     bundled backends report BadTxn but callers must not rely on it.
//   - Slices returned by Txn.Get alias engine memory and are only valid until
//     the Txn ends.
package engine

import "os"

// Table identifies a key-value namespace inside an environment.
type Table uint32

// Environment flags.
const (
	// EnvDefaults is the default (durable) mode
	EnvDefaults uint = 0

	// NoSync skips the data flush on commit
	NoSync uint = 0x00010000

	// NoMetaSync skips the meta/header flush on commit
	NoMetaSync uint = 0x00040000

	// NoLock disables internal locking; the caller serializes all access
	NoLock uint = 0x00400000

	// NoTLS disables thread-local reader slots
	NoTLS uint = 0x00200000

	// NoReadAhead disables OS readahead on the data file
	NoReadAhead uint = 0x00800000

	// NoMemInit skips zeroing of buffers handed to the OS
	NoMemInit uint = 0x01000000
)

// Transaction flags.
const (
	// TxnReadWrite is the default read-write transaction
	TxnReadWrite uint = 0

	// TxnReadOnly creates a read-only transaction
	TxnReadOnly uint = 0x20000
)

// Table flags.
const (
	// TableDefaults opens an existing table
	TableDefaults uint = 0

	// Create creates the table if it doesn't exist
	Create uint = 0x40000
)

// Put flags.
const (
	// Upsert is the default insert-or-update mode
	Upsert uint = 0

	// NoOverwrite returns KeyExist if the key exists
	NoOverwrite uint = 0x10
)

// Engine creates environments for one backend.
type Engine interface {
	// Name is a short backend identifier such as "mapfile" or "mdbx".
	Name() string

	// CreateEnv allocates an unopened environment handle.
	CreateEnv() (Env, error)
}

// Env is an environment handle.
type Env interface {
	// SetMapSize sets the map capacity in bytes. It may be called before
	// Open and, to grow the map, after it.
	SetMapSize(size int64) error

	// Open opens the environment rooted at the directory path.
	Open(path string, flags uint, mode os.FileMode) error

	// BeginTxn starts a transaction. Nested transactions are not used by
	// mapkv; backends may reject a non-nil parent with Incompatible.
	BeginTxn(parent Txn, flags uint) (Txn, error)

	// CloseTable releases a table handle.
	CloseTable(t Table)

	// Close releases the environment. Safe to call on an unopened handle.
	Close() error
}

// Txn is a transaction handle.
type Txn interface {
	// OpenTable opens (or with Create, creates) a table by name. The empty
	// name is the environment's main table.
	OpenTable(name string, flags uint) (Table, error)

	// Get returns the value for key, or an error with code NotFound.
	Get(t Table, key []byte) ([]byte, error)

	// Put stores value under key.
	Put(t Table, key, value []byte, flags uint) error

	// Commit ends the transaction, making its writes durable according to
	// the environment flags. The transaction is ended even when Commit
	// fails; the caller must not Abort it afterwards.
	Commit() error

	// Abort ends the transaction discarding its writes.
	Abort()
}

// MapSizer is implemented by environments that can report their actual map
// capacity, which may exceed the requested size when an existing file is
// larger.
type MapSizer interface {
	MapSize() int64
}

// Stat is the usage an environment reports.
type Stat struct {
	Used     int64  // bytes of the map holding data
	Entries  int    // live keys in the main table
	TxnID    uint64 // last committed transaction
	LiveTxns int
}

// Stater is implemented by environments that can report their usage.
type Stater interface {
	Stat() Stat
}
