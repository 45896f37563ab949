package mapkv

import (
	"bytes"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Giulio2002/mapkv/engine"
)

// Store is one open database: an engine environment and a single table.
//
// A Store may be shared between goroutines unless it was opened with
// NoLocking. Open and Close must not race with other calls that use the
// same Store, and explicit transactions must be ended before Close.
type Store struct {
	eng  engine.Engine
	opts Options
	log  Logger

	// lifecycle is held exclusively by Open/Close and shared by operations.
	lifecycle sync.RWMutex
	env       engine.Env
	table     engine.Table
	path      string
	flags     Flags

	open atomic.Bool

	mu      sync.Mutex // guards mapSize and lastErr
	mapSize int64
	lastErr string
}

// Txn is an explicit transaction started by Store.Begin. The caller owns it
// and must end it exactly once with Store.Commit or Store.Abort.
type Txn struct {
	raw  engine.Txn
	done bool
}

// New creates a closed Store backed by eng.
func New(eng engine.Engine, opts *Options) *Store {
	o := opts.withDefaults()
	return &Store{
		eng:     eng,
		opts:    o,
		log:     o.Logger,
		mapSize: o.MapSize,
	}
}

// Open creates (if needed) and opens the database rooted at directory path.
//
// Any failure leaves the Store closed with the engine's message recorded;
// resources allocated by the failed attempt are released.
func (s *Store) Open(path string, flags Flags) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.open.Load() {
		return ErrAlreadyOpen
	}
	// A structural failure leaves handles behind for Close; drop them now.
	s.releaseHandles()

	if err := os.MkdirAll(path, 0755); err != nil {
		return s.fail("open", KindStructural, engine.WrapError(engine.Problem, err))
	}

	env, err := s.eng.CreateEnv()
	if err != nil {
		return s.fail("open", KindStructural, err)
	}
	size := s.MapSize()
	if err := env.SetMapSize(size); err != nil {
		env.Close()
		return s.fail("open", KindStructural, err)
	}
	if err := env.Open(path, flags.envFlags(), s.opts.Mode); err != nil {
		env.Close()
		return s.fail("open", KindStructural, err)
	}
	table, err := openTable(env, s.opts.Table)
	if err != nil {
		env.Close()
		return s.fail("open", KindStructural, err)
	}

	s.env = env
	s.table = table
	s.path = path
	s.flags = flags

	// Engines that round or adopt an existing file's size report the real
	// capacity; growth doubles from that.
	if ms, ok := env.(engine.MapSizer); ok {
		size = ms.MapSize()
	}

	s.mu.Lock()
	s.mapSize = size
	s.lastErr = ""
	s.mu.Unlock()
	s.open.Store(true)

	s.log.Infof("[store] opened %s engine=%s flags=%s mapsize=%d", path, s.eng.Name(), flags, size)
	return nil
}

func openTable(env engine.Env, name string) (engine.Table, error) {
	sc := beginScope(env, nil, engine.TxnReadWrite)
	defer sc.release()
	if !sc.hasTransaction() {
		return 0, sc.err
	}
	table, err := sc.txn.OpenTable(name, engine.Create)
	if err != nil {
		return 0, err
	}
	return table, sc.commit()
}

// Close closes the table and the environment. It is safe to call on a Store
// that is not open.
func (s *Store) Close() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	wasOpen := s.open.Swap(false)
	if err := s.releaseHandles(); err != nil {
		return s.fail("close", KindStructural, err)
	}
	if wasOpen {
		s.log.Infof("[store] closed %s", s.path)
	}
	return nil
}

func (s *Store) releaseHandles() error {
	if s.env == nil {
		return nil
	}
	s.env.CloseTable(s.table)
	err := s.env.Close()
	s.env = nil
	s.table = 0
	return err
}

// Put stores value under key.
//
// With a nil txn the write runs in a private transaction that is committed
// before Put returns. With an explicit txn the write becomes visible to
// other transactions only when the caller commits it.
//
// If the engine reports that the map is full, the map capacity is doubled
// and the write is retried once. A failure to grow the map, or a failing
// retry, closes the Store.
func (s *Store) Put(txn *Txn, key, value []byte) error {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()

	if !s.open.Load() {
		return s.notOpen("put")
	}
	if txn != nil && txn.done {
		return s.txnDone("put")
	}

	observed := s.MapSize()
	err := s.tryPut(txn, key, value)
	if err == nil {
		return nil
	}
	if !engine.IsMapFull(err) {
		return s.fail("put", KindTransient, err)
	}

	if err := s.growMap(observed); err != nil {
		return s.fail("put", KindStructural, err)
	}
	if err := s.tryPut(txn, key, value); err != nil {
		return s.fail("put", KindStructural, err)
	}
	return nil
}

func (s *Store) tryPut(txn *Txn, key, value []byte) error {
	sc := beginScope(s.env, txn, engine.TxnReadWrite)
	defer sc.release()
	if !sc.hasTransaction() {
		return sc.err
	}
	if err := sc.txn.Put(s.table, key, value, engine.Upsert); err != nil {
		return err
	}
	return sc.commit()
}

// growMap doubles the map capacity unless another call already grew it past
// observed, the size seen before the failed attempt.
func (s *Store) growMap(observed int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mapSize > observed {
		s.log.Debugf("[store] map already grown to %d", s.mapSize)
		return nil
	}
	if s.mapSize > math.MaxInt64/2 {
		return engine.NewError(engine.MapFull)
	}
	next := s.mapSize * 2
	if err := s.env.SetMapSize(next); err != nil {
		return err
	}
	s.log.Warnf("[store] map full, growing map from %d to %d", s.mapSize, next)
	s.mapSize = next
	return nil
}

// Get returns the value stored under key. A missing key is reported as
// found == false with a nil error.
//
// With an explicit txn the returned slice aliases engine memory and is only
// valid until that transaction ends; copy it to keep it longer. With a nil
// txn the value is copied out before the private transaction is released.
func (s *Store) Get(txn *Txn, key []byte) (value []byte, found bool, err error) {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()

	if !s.open.Load() {
		return nil, false, s.notOpen("get")
	}
	if txn != nil && txn.done {
		return nil, false, s.txnDone("get")
	}

	sc := beginScope(s.env, txn, engine.TxnReadOnly)
	defer sc.release()
	if !sc.hasTransaction() {
		return nil, false, s.fail("get", KindTransient, sc.err)
	}

	v, err := sc.txn.Get(s.table, key)
	if engine.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.fail("get", KindTransient, err)
	}
	if sc.owned {
		v = bytes.Clone(v)
	}
	return v, true, nil
}

// Begin starts an explicit read-write transaction. A failure to allocate
// the transaction does not close the Store.
func (s *Store) Begin() (*Txn, error) {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()

	if !s.open.Load() {
		return nil, s.notOpen("begin")
	}
	raw, err := s.env.BeginTxn(nil, engine.TxnReadWrite)
	if err != nil {
		return nil, s.fail("begin", KindTransient, err)
	}
	return &Txn{raw: raw}, nil
}

// Commit commits an explicit transaction. A failed commit closes the Store.
func (s *Store) Commit(txn *Txn) error {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()

	if txn == nil || txn.done {
		return s.txnDone("commit")
	}
	txn.done = true
	if !s.open.Load() {
		// The environment is still allocated until Close, so the
		// transaction can be released; it must not be committed.
		if s.env != nil {
			txn.raw.Abort()
		}
		return s.notOpen("commit")
	}
	if err := txn.raw.Commit(); err != nil {
		return s.fail("commit", KindStructural, err)
	}
	return nil
}

// Abort discards an explicit transaction. Aborting an ended transaction is a
// no-op.
func (s *Store) Abort(txn *Txn) {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()

	if txn == nil || txn.done {
		return
	}
	txn.done = true
	if s.env != nil {
		txn.raw.Abort()
	}
}

// IsOpen reports whether the Store accepts operations.
func (s *Store) IsOpen() bool {
	return s.open.Load()
}

// LastError returns the message of the most recent failure, or "" after a
// successful Open. Prefer the error returned by each call; this is kept for
// diagnostics.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// MapSize returns the current map capacity in bytes.
func (s *Store) MapSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapSize
}

// Flags returns the flags the Store was opened with.
func (s *Store) Flags() Flags {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()
	return s.flags
}

// Path returns the directory the Store was opened on.
func (s *Store) Path() string {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()
	return s.path
}

// Stat returns the backend's usage figures. ok is false when the Store is
// not open or the backend does not report usage.
func (s *Store) Stat() (st engine.Stat, ok bool) {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()

	if !s.open.Load() {
		return st, false
	}
	sr, ok := s.env.(engine.Stater)
	if !ok {
		return st, false
	}
	return sr.Stat(), true
}

// Engine returns the name of the backend.
func (s *Store) Engine() string {
	return s.eng.Name()
}

func (s *Store) fail(op string, kind Kind, err error) error {
	e := newError(op, kind, err)
	s.mu.Lock()
	s.lastErr = e.Message
	s.mu.Unlock()

	if kind == KindStructural {
		s.open.Store(false)
		s.log.Errorf("[store] %s failed, store closed: %s", op, e.Message)
	} else {
		s.log.Debugf("[store] %s failed: %s", op, e.Message)
	}
	return e
}

func (s *Store) notOpen(op string) error {
	return s.record(&Error{Op: op, Kind: KindNotOpen, Message: ErrNotOpen.Message})
}

func (s *Store) txnDone(op string) error {
	return s.record(&Error{Op: op, Kind: ErrTxnDone.Kind, Code: ErrTxnDone.Code, Message: ErrTxnDone.Message})
}

func (s *Store) record(e *Error) error {
	s.mu.Lock()
	s.lastErr = e.Message
	s.mu.Unlock()
	return e
}
