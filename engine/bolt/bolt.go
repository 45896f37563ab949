// Package bolt binds the engine surface to bbolt. Each table is a bucket;
// the main table is the bucket named "main". bbolt grows its map on its own,
// so only the initial map size is honored.
package bolt

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"github.com/Giulio2002/mapkv/engine"
)

// FileName is the database file inside the environment directory.
const FileName = "data.bolt"

// mainBucket backs the unnamed table.
const mainBucket = "main"

// lockTimeout bounds the wait for another process's file lock.
const lockTimeout = time.Second

// Engine creates bbolt environments.
type Engine struct{}

// New returns the bbolt engine.
func New() *Engine {
	return &Engine{}
}

// Name implements engine.Engine.
func (*Engine) Name() string { return "bolt" }

// CreateEnv implements engine.Engine.
func (*Engine) CreateEnv() (engine.Env, error) {
	return &env{}, nil
}

type env struct {
	mu      sync.Mutex
	db      *bolt.DB
	mapSize int64
	tables  []string // Table(i+1) names tables[i]
}

func (e *env) SetMapSize(size int64) error {
	if size <= 0 {
		return engine.NewError(engine.InvalidArgument)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		e.mapSize = size
	}
	return nil
}

func (e *env) Open(path string, flags uint, mode os.FileMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db != nil {
		return engine.NewError(engine.Incompatible)
	}

	opts := &bolt.Options{
		Timeout:         lockTimeout,
		InitialMmapSize: int(e.mapSize),
	}
	if flags&engine.NoSync != 0 {
		opts.NoSync = true
		opts.NoFreelistSync = true
	}
	db, err := bolt.Open(filepath.Join(path, FileName), mode, opts)
	if err != nil {
		return wrap(err)
	}
	e.db = db
	return nil
}

func (e *env) table(name string) engine.Table {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, n := range e.tables {
		if n == name {
			return engine.Table(i + 1)
		}
	}
	e.tables = append(e.tables, name)
	return engine.Table(len(e.tables))
}

func (e *env) bucketName(table engine.Table) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if table == 0 || int(table) > len(e.tables) {
		return nil, false
	}
	return []byte(e.tables[table-1]), true
}

func (e *env) BeginTxn(parent engine.Txn, flags uint) (engine.Txn, error) {
	if parent != nil {
		return nil, engine.NewError(engine.Incompatible)
	}
	e.mu.Lock()
	db := e.db
	e.mu.Unlock()
	if db == nil {
		return nil, engine.NewError(engine.BadTxn)
	}
	tx, err := db.Begin(flags&engine.TxnReadOnly == 0)
	if err != nil {
		return nil, wrap(err)
	}
	return &txn{env: e, tx: tx}, nil
}

func (e *env) CloseTable(engine.Table) {}

func (e *env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return wrap(err)
}

type txn struct {
	env  *env
	tx   *bolt.Tx
	done bool
}

func (t *txn) OpenTable(name string, flags uint) (engine.Table, error) {
	if t.done {
		return 0, engine.NewError(engine.BadTxn)
	}
	if name == "" {
		name = mainBucket
	}
	if t.tx.Bucket([]byte(name)) == nil {
		if flags&engine.Create == 0 {
			return 0, engine.NewError(engine.NotFound)
		}
		if _, err := t.tx.CreateBucket([]byte(name)); err != nil {
			return 0, wrap(err)
		}
	}
	return t.env.table(name), nil
}

func (t *txn) bucket(table engine.Table) (*bolt.Bucket, error) {
	if t.done {
		return nil, engine.NewError(engine.BadTxn)
	}
	name, ok := t.env.bucketName(table)
	if !ok {
		return nil, engine.NewError(engine.BadDBI)
	}
	b := t.tx.Bucket(name)
	if b == nil {
		// created by a transaction this one cannot see
		return nil, engine.NewError(engine.NotFound)
	}
	return b, nil
}

func (t *txn) Get(table engine.Table, key []byte) ([]byte, error) {
	b, err := t.bucket(table)
	if err != nil {
		return nil, err
	}
	v := b.Get(key)
	if v == nil {
		return nil, engine.NewError(engine.NotFound)
	}
	return v, nil
}

func (t *txn) Put(table engine.Table, key, value []byte, flags uint) error {
	b, err := t.bucket(table)
	if err != nil {
		return err
	}
	if flags&engine.NoOverwrite != 0 && b.Get(key) != nil {
		return engine.NewError(engine.KeyExist)
	}
	return wrap(b.Put(key, value))
}

func (t *txn) Commit() error {
	if t.done {
		return engine.NewError(engine.BadTxn)
	}
	t.done = true
	if !t.tx.Writable() {
		return wrap(t.tx.Rollback())
	}
	return wrap(t.tx.Commit())
}

func (t *txn) Abort() {
	if t.done {
		return
	}
	t.done = true
	_ = t.tx.Rollback()
}

// wrap maps bbolt errors onto engine statuses.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var code engine.Status
	switch {
	case errors.Is(err, berrors.ErrTxClosed), errors.Is(err, berrors.ErrDatabaseNotOpen):
		code = engine.BadTxn
	case errors.Is(err, berrors.ErrTxNotWritable), errors.Is(err, berrors.ErrDatabaseReadOnly):
		code = engine.Incompatible
	case errors.Is(err, berrors.ErrKeyRequired), errors.Is(err, berrors.ErrKeyTooLarge),
		errors.Is(err, berrors.ErrValueTooLarge):
		code = engine.BadValSize
	case errors.Is(err, berrors.ErrTimeout):
		code = engine.Busy
	case errors.Is(err, berrors.ErrInvalid):
		code = engine.Invalid
	case errors.Is(err, berrors.ErrVersionMismatch):
		code = engine.VersionMismatch
	case errors.Is(err, berrors.ErrChecksum):
		code = engine.Corrupted
	case errors.Is(err, berrors.ErrBucketNotFound):
		code = engine.NotFound
	default:
		code = engine.Problem
	}
	return engine.WrapError(code, err)
}

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Env    = (*env)(nil)
	_ engine.Txn    = (*txn)(nil)
)
