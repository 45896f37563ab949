//go:build rocksdb

// Package rocks binds the engine surface to a RocksDB TransactionDB through
// gorocksdb. It needs librocksdb and is built with the rocksdb tag.
//
// RocksDB has no map to fill: SetMapSize only sizes the write buffer and
// Put never reports MapFull. Only the main table is supported.
package rocks

import (
	"os"
	"sync"

	"github.com/tecbot/gorocksdb"

	"github.com/Giulio2002/mapkv/engine"
)

// mainTable is the handle of the default column family.
const mainTable engine.Table = 1

// maxWriteBuffer caps the write buffer derived from the map size.
const maxWriteBuffer = 64 << 20

// Engine creates RocksDB environments.
type Engine struct{}

// New returns the RocksDB engine.
func New() *Engine {
	return &Engine{}
}

// Name implements engine.Engine.
func (*Engine) Name() string { return "rocksdb" }

// CreateEnv implements engine.Engine.
func (*Engine) CreateEnv() (engine.Env, error) {
	return &env{}, nil
}

type env struct {
	mu          sync.Mutex
	db          *gorocksdb.TransactionDB
	writeBuffer int
	sync        bool
}

func (e *env) SetMapSize(size int64) error {
	if size <= 0 {
		return engine.NewError(engine.InvalidArgument)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		e.writeBuffer = int(min(size, maxWriteBuffer))
	}
	return nil
}

// Open ignores mode; RocksDB creates its files with the process umask.
func (e *env) Open(path string, flags uint, mode os.FileMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db != nil {
		return engine.NewError(engine.Incompatible)
	}

	opts := gorocksdb.NewDefaultOptions()
	defer opts.Destroy()
	opts.SetCreateIfMissing(true)
	if e.writeBuffer > 0 {
		opts.SetWriteBufferSize(e.writeBuffer)
	}
	tdbOpts := gorocksdb.NewDefaultTransactionDBOptions()
	defer tdbOpts.Destroy()

	db, err := gorocksdb.OpenTransactionDb(opts, tdbOpts, path)
	if err != nil {
		return engine.WrapError(engine.Problem, err)
	}
	e.db = db
	e.sync = flags&engine.NoSync == 0
	return nil
}

func (e *env) handle() *gorocksdb.TransactionDB {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db
}

func (e *env) BeginTxn(parent engine.Txn, flags uint) (engine.Txn, error) {
	if parent != nil {
		return nil, engine.NewError(engine.Incompatible)
	}
	db := e.handle()
	if db == nil {
		return nil, engine.NewError(engine.BadTxn)
	}

	t := &txn{db: db, ro: gorocksdb.NewDefaultReadOptions()}
	if flags&engine.TxnReadOnly != 0 {
		t.snap = db.NewSnapshot()
		t.ro.SetSnapshot(t.snap)
		return t, nil
	}

	t.wo = gorocksdb.NewDefaultWriteOptions()
	t.wo.SetSync(e.sync)
	t.txopts = gorocksdb.NewDefaultTransactionOptions()
	t.raw = db.TransactionBegin(t.wo, t.txopts, nil)
	return t, nil
}

func (e *env) CloseTable(engine.Table) {}

func (e *env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db != nil {
		e.db.Close()
		e.db = nil
	}
	return nil
}

// txn is a write transaction when raw is set, otherwise a snapshot reader.
type txn struct {
	db     *gorocksdb.TransactionDB
	ro     *gorocksdb.ReadOptions
	snap   *gorocksdb.Snapshot
	wo     *gorocksdb.WriteOptions
	txopts *gorocksdb.TransactionOptions
	raw    *gorocksdb.Transaction
	done   bool
}

func (t *txn) OpenTable(name string, flags uint) (engine.Table, error) {
	if t.done {
		return 0, engine.NewError(engine.BadTxn)
	}
	if name != "" {
		return 0, engine.NewError(engine.Incompatible)
	}
	return mainTable, nil
}

// Get copies the value out of RocksDB; the slice stays valid after the
// transaction ends.
func (t *txn) Get(table engine.Table, key []byte) ([]byte, error) {
	if t.done {
		return nil, engine.NewError(engine.BadTxn)
	}
	if table != mainTable {
		return nil, engine.NewError(engine.BadDBI)
	}

	var (
		s   *gorocksdb.Slice
		err error
	)
	if t.raw != nil {
		s, err = t.raw.Get(t.ro, key)
	} else {
		s, err = t.db.Get(t.ro, key)
	}
	if err != nil {
		return nil, engine.WrapError(engine.Problem, err)
	}
	defer s.Free()
	if !s.Exists() {
		return nil, engine.NewError(engine.NotFound)
	}
	return append([]byte{}, s.Data()...), nil
}

func (t *txn) Put(table engine.Table, key, value []byte, flags uint) error {
	if t.done {
		return engine.NewError(engine.BadTxn)
	}
	if t.raw == nil {
		return engine.NewError(engine.Incompatible)
	}
	if table != mainTable {
		return engine.NewError(engine.BadDBI)
	}
	if len(key) == 0 {
		return engine.NewError(engine.BadValSize)
	}
	if flags&engine.NoOverwrite != 0 {
		if _, err := t.Get(table, key); err == nil {
			return engine.NewError(engine.KeyExist)
		}
	}
	if err := t.raw.Put(key, value); err != nil {
		return engine.WrapError(engine.Problem, err)
	}
	return nil
}

func (t *txn) Commit() error {
	if t.done {
		return engine.NewError(engine.BadTxn)
	}
	var err error
	if t.raw != nil {
		err = t.raw.Commit()
	}
	t.release()
	if err != nil {
		return engine.WrapError(engine.Problem, err)
	}
	return nil
}

func (t *txn) Abort() {
	if t.done {
		return
	}
	if t.raw != nil {
		_ = t.raw.Rollback()
	}
	t.release()
}

func (t *txn) release() {
	t.done = true
	if t.raw != nil {
		t.raw.Destroy()
		t.wo.Destroy()
		t.txopts.Destroy()
	}
	if t.snap != nil {
		t.db.ReleaseSnapshot(t.snap)
	}
	t.ro.Destroy()
}

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Env    = (*env)(nil)
	_ engine.Txn    = (*txn)(nil)
)
