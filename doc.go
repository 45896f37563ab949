// Package mapkv is a small key-value store over a memory-mapped,
// copy-on-write transactional engine.
//
// A Store owns one engine environment and one table. Reads and writes take
// an optional explicit transaction:
//
//   - With a nil *Txn the call runs in a private transaction that is
//     committed (writes) or aborted (reads) before it returns.
//   - With a *Txn from Begin the call joins that transaction, and the caller
//     ends it with Commit or Abort.
//
// When the engine reports that its map is full, Put doubles the map
// capacity and retries the write once.
//
// Failures are returned as *Error and classified by Kind:
//
//   - KindNotOpen: the Store is closed; the engine was not touched.
//   - KindTransient: one call failed; the Store stays open.
//   - KindStructural: the environment can no longer be trusted and the
//     Store has closed itself. Close and Open it again to recover.
//
// Basic usage:
//
//	s := mapkv.New(mapfile.New(), nil)
//	if err := s.Open("/path/to/db", mapkv.DefaultFlags); err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.Put(nil, []byte("hello"), []byte("world")); err != nil {
//	    log.Fatal(err)
//	}
//	value, found, err := s.Get(nil, []byte("hello"))
//
// Values read through an explicit transaction alias engine memory and are
// valid only until that transaction ends. Values read without one are
// copies.
//
// Backends live under engine/: mapfile (pure Go, the default), mdbx
// (libmdbx), bolt (bbolt) and rocks (RocksDB, behind the rocksdb build
// tag).
package mapkv
