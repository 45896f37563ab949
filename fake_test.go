package mapkv

import (
	"os"
	"sync"

	"github.com/Giulio2002/mapkv/engine"
)

// fakeEngine is an in-memory engine with failure injection and call
// counting. Committed data lives on the engine so it survives reopen.
type fakeEngine struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls map[string]int

	mapSizes []int64 // every SetMapSize argument

	mapFullPuts    int   // the next N puts report MapFull
	failCreate     error // CreateEnv
	failOpen       error // Env.Open
	failBegin      error // Env.BeginTxn
	failSetMapSize error // SetMapSize on an open env
	failCommit     error // Txn.Commit of a write txn
	failTable      error // Txn.OpenTable
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		data:  make(map[string][]byte),
		calls: make(map[string]int),
	}
}

func (f *fakeEngine) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeEngine) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeEngine) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) CreateEnv() (engine.Env, error) {
	f.count("CreateEnv")
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	return &fakeEnv{eng: f}, nil
}

type fakeEnv struct {
	eng    *fakeEngine
	opened bool
	closed bool
}

func (e *fakeEnv) SetMapSize(size int64) error {
	e.eng.count("SetMapSize")
	if e.opened && e.eng.failSetMapSize != nil {
		return e.eng.failSetMapSize
	}
	e.eng.mu.Lock()
	e.eng.mapSizes = append(e.eng.mapSizes, size)
	e.eng.mu.Unlock()
	return nil
}

func (e *fakeEnv) Open(path string, flags uint, mode os.FileMode) error {
	e.eng.count("Open")
	if e.eng.failOpen != nil {
		return e.eng.failOpen
	}
	e.opened = true
	return nil
}

func (e *fakeEnv) BeginTxn(parent engine.Txn, flags uint) (engine.Txn, error) {
	e.eng.count("BeginTxn")
	if e.eng.failBegin != nil {
		return nil, e.eng.failBegin
	}
	if !e.opened || e.closed {
		return nil, engine.NewError(engine.BadTxn)
	}
	return &fakeTxn{env: e, write: flags&engine.TxnReadOnly == 0, dirty: make(map[string][]byte)}, nil
}

func (e *fakeEnv) CloseTable(engine.Table) {
	e.eng.count("CloseTable")
}

func (e *fakeEnv) Close() error {
	e.eng.count("Close")
	e.closed = true
	return nil
}

type fakeTxn struct {
	env   *fakeEnv
	write bool
	done  bool
	dirty map[string][]byte
}

func (t *fakeTxn) OpenTable(name string, flags uint) (engine.Table, error) {
	t.env.eng.count("OpenTable")
	if t.env.eng.failTable != nil {
		return 0, t.env.eng.failTable
	}
	return 1, nil
}

func (t *fakeTxn) Get(table engine.Table, key []byte) ([]byte, error) {
	t.env.eng.count("Get")
	if t.done {
		return nil, engine.NewError(engine.BadTxn)
	}
	if v, ok := t.dirty[string(key)]; ok {
		return v, nil
	}
	f := t.env.eng
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[string(key)]
	if !ok {
		return nil, engine.NewError(engine.NotFound)
	}
	return v, nil
}

func (t *fakeTxn) Put(table engine.Table, key, value []byte, flags uint) error {
	t.env.eng.count("Put")
	if t.done {
		return engine.NewError(engine.BadTxn)
	}
	f := t.env.eng
	f.mu.Lock()
	full := f.mapFullPuts > 0
	if full {
		f.mapFullPuts--
	}
	f.mu.Unlock()
	if full {
		return engine.NewError(engine.MapFull)
	}
	t.dirty[string(key)] = append([]byte{}, value...)
	return nil
}

func (t *fakeTxn) Commit() error {
	t.env.eng.count("Commit")
	if t.done {
		return engine.NewError(engine.BadTxn)
	}
	t.done = true
	f := t.env.eng
	if t.write && f.failCommit != nil {
		return f.failCommit
	}
	f.mu.Lock()
	for k, v := range t.dirty {
		f.data[k] = v
	}
	f.mu.Unlock()
	return nil
}

func (t *fakeTxn) Abort() {
	t.env.eng.count("Abort")
	t.done = true
}
