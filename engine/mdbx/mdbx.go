// Package mdbx binds the engine surface to libmdbx through mdbx-go.
//
// Write transactions pin their goroutine to an OS thread from BeginTxn until
// Commit or Abort, as libmdbx requires.
//
// libmdbx cannot raise the upper bound of an open environment's geometry, so
// growing the map closes the environment and reopens it on the same path
// with the larger bound. That needs the environment to be idle: SetMapSize
// fails with UnableExtendMapSize while any transaction is live.
package mdbx

import (
	"errors"
	"os"
	"runtime"
	"sort"
	"sync"

	mdbxgo "github.com/erigontech/mdbx-go/mdbx"

	"github.com/Giulio2002/mapkv/engine"
)

// maxTables is the number of named tables an environment may hold.
const maxTables = 16

// Engine creates libmdbx environments.
type Engine struct {
	label string
}

// New returns the libmdbx engine. label names the environments in libmdbx's
// diagnostics.
func New(label string) *Engine {
	if label == "" {
		label = "mapkv"
	}
	return &Engine{label: label}
}

// Name implements engine.Engine.
func (*Engine) Name() string { return "mdbx" }

// CreateEnv implements engine.Engine.
func (e *Engine) CreateEnv() (engine.Env, error) {
	raw, err := newRaw(e.label)
	if err != nil {
		return nil, err
	}
	return &env{label: e.label, raw: raw, tables: map[engine.Table]string{}}, nil
}

func newRaw(label string) (*mdbxgo.Env, error) {
	raw, err := mdbxgo.NewEnv(mdbxgo.Label(label))
	if err != nil {
		return nil, wrap(err)
	}
	if err := raw.SetOption(mdbxgo.OptMaxDB, maxTables); err != nil {
		raw.Close()
		return nil, wrap(err)
	}
	return raw, nil
}

type env struct {
	label string

	mu     sync.Mutex // guards everything below
	raw    *mdbxgo.Env
	opened bool
	path   string
	flags  uint
	mode   os.FileMode
	size   int64
	live   int                     // transactions begun and not yet ended
	tables map[engine.Table]string // committed table handles by name
}

func (e *env) SetMapSize(size int64) error {
	if size <= 0 {
		return engine.NewError(engine.InvalidArgument)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.raw == nil {
		return engine.NewError(engine.BadTxn)
	}
	if !e.opened {
		if err := e.raw.SetGeometry(-1, -1, int(size), -1, -1, -1); err != nil {
			return wrap(err)
		}
		e.size = size
		return nil
	}
	if e.live > 0 {
		return engine.NewError(engine.UnableExtendMapSize)
	}
	return e.reopen(size)
}

// reopen replaces the open environment with one whose upper bound is size
// and reopens the committed tables, which must come back with the same
// handles. On failure the environment is left closed.
func (e *env) reopen(size int64) error {
	e.raw.Close()
	e.raw = nil

	raw, err := newRaw(e.label)
	if err != nil {
		return err
	}
	if err := raw.SetGeometry(-1, -1, int(size), -1, -1, -1); err != nil {
		raw.Close()
		return wrap(err)
	}
	if err := raw.Open(e.path, e.flags, e.mode); err != nil {
		raw.Close()
		return wrap(err)
	}
	if err := reopenTables(raw, e.tables); err != nil {
		raw.Close()
		return err
	}
	e.raw = raw
	e.size = size
	return nil
}

func reopenTables(raw *mdbxgo.Env, tables map[engine.Table]string) error {
	if len(tables) == 0 {
		return nil
	}
	handles := make([]engine.Table, 0, len(tables))
	for h := range tables {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	txn, err := raw.BeginTxn(nil, 0)
	if err != nil {
		return wrap(err)
	}
	for _, h := range handles {
		dbi, err := openDBI(txn, tables[h], 0)
		if err != nil {
			txn.Abort()
			return wrap(err)
		}
		if engine.Table(dbi) != h {
			txn.Abort()
			return engine.NewError(engine.BadDBI)
		}
	}
	_, err = txn.Commit()
	return wrap(err)
}

func (e *env) Open(path string, flags uint, mode os.FileMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.raw == nil || e.opened {
		return engine.NewError(engine.Incompatible)
	}
	mflags := envFlags(flags)
	if err := e.raw.Open(path, mflags, mode); err != nil {
		return wrap(err)
	}
	e.opened = true
	e.path = path
	e.flags = mflags
	e.mode = mode
	return nil
}

func envFlags(flags uint) uint {
	var out uint
	if flags&engine.NoSync != 0 {
		out |= mdbxgo.SafeNoSync
	}
	if flags&engine.NoMetaSync != 0 {
		out |= mdbxgo.NoMetaSync
	}
	if flags&engine.NoLock != 0 {
		// a single process owns the environment, so libmdbx skips the
		// shared lock table
		out |= mdbxgo.Exclusive
	}
	if flags&engine.NoTLS != 0 {
		out |= mdbxgo.NoTLS
	}
	if flags&engine.NoReadAhead != 0 {
		out |= mdbxgo.NoReadahead
	}
	if flags&engine.NoMemInit != 0 {
		out |= mdbxgo.NoMemInit
	}
	return out
}

func (e *env) BeginTxn(parent engine.Txn, flags uint) (engine.Txn, error) {
	var p *mdbxgo.Txn
	if parent != nil {
		pt, ok := parent.(*txn)
		if !ok || pt.done {
			return nil, engine.NewError(engine.BadTxn)
		}
		p = pt.raw
	}

	// Count the txn before beginning it so a concurrent reopen either sees
	// it live or completes first.
	e.mu.Lock()
	raw := e.raw
	if raw == nil {
		e.mu.Unlock()
		return nil, engine.NewError(engine.BadTxn)
	}
	e.live++
	e.mu.Unlock()

	var mflags uint
	write := flags&engine.TxnReadOnly == 0
	if !write {
		mflags |= mdbxgo.Readonly
	}
	if write {
		runtime.LockOSThread()
	}
	rt, err := raw.BeginTxn(p, mflags)
	if err != nil {
		if write {
			runtime.UnlockOSThread()
		}
		e.end()
		return nil, wrap(err)
	}
	return &txn{env: e, raw: rt, pinned: write}, nil
}

func (e *env) end() {
	e.mu.Lock()
	e.live--
	e.mu.Unlock()
}

func (e *env) CloseTable(table engine.Table) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.tables, table)
	if e.raw != nil {
		e.raw.CloseDBI(mdbxgo.DBI(table))
	}
}

func (e *env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.raw != nil {
		e.raw.Close()
		e.raw = nil
	}
	return nil
}

type txn struct {
	env    *env
	raw    *mdbxgo.Txn
	pinned bool
	done   bool
	opened map[engine.Table]string // tables opened by this txn
}

func openDBI(raw *mdbxgo.Txn, name string, flags uint) (mdbxgo.DBI, error) {
	if name == "" {
		return raw.OpenRoot(flags)
	}
	return raw.OpenDBI(name, flags, nil, nil)
}

func (t *txn) OpenTable(name string, flags uint) (engine.Table, error) {
	if t.done {
		return 0, engine.NewError(engine.BadTxn)
	}
	var mflags uint
	if flags&engine.Create != 0 {
		mflags |= mdbxgo.Create
	}
	dbi, err := openDBI(t.raw, name, mflags)
	if err != nil {
		return 0, wrap(err)
	}
	if t.opened == nil {
		t.opened = map[engine.Table]string{}
	}
	t.opened[engine.Table(dbi)] = name
	return engine.Table(dbi), nil
}

func (t *txn) Get(table engine.Table, key []byte) ([]byte, error) {
	if t.done {
		return nil, engine.NewError(engine.BadTxn)
	}
	v, err := t.raw.Get(mdbxgo.DBI(table), key)
	if err != nil {
		return nil, wrap(err)
	}
	return v, nil
}

func (t *txn) Put(table engine.Table, key, value []byte, flags uint) error {
	if t.done {
		return engine.NewError(engine.BadTxn)
	}
	var mflags uint = mdbxgo.Upsert
	if flags&engine.NoOverwrite != 0 {
		mflags = mdbxgo.NoOverwrite
	}
	return wrap(t.raw.Put(mdbxgo.DBI(table), key, value, mflags))
}

func (t *txn) Commit() error {
	if t.done {
		return engine.NewError(engine.BadTxn)
	}
	t.done = true
	_, err := t.raw.Commit()
	if t.pinned {
		runtime.UnlockOSThread()
	}
	if err == nil && len(t.opened) > 0 {
		t.env.mu.Lock()
		for h, name := range t.opened {
			t.env.tables[h] = name
		}
		t.env.mu.Unlock()
	}
	t.env.end()
	return wrap(err)
}

func (t *txn) Abort() {
	if t.done {
		return
	}
	t.done = true
	t.raw.Abort()
	if t.pinned {
		runtime.UnlockOSThread()
	}
	t.env.end()
}

// wrap converts an mdbx-go error into an *engine.Error carrying the libmdbx
// status, which shares its numbering with engine.Status.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case mdbxgo.IsNotFound(err):
		return engine.WrapError(engine.NotFound, err)
	case mdbxgo.IsMapFull(err):
		return engine.WrapError(engine.MapFull, err)
	}
	var op *mdbxgo.OpError
	if errors.As(err, &op) {
		if errno, ok := op.Errno.(mdbxgo.Errno); ok {
			return engine.WrapError(engine.Status(errno), err)
		}
	}
	return engine.WrapError(engine.Problem, err)
}

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Env    = (*env)(nil)
	_ engine.Txn    = (*txn)(nil)
)
