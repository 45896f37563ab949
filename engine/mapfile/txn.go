//go:build unix

package mapfile

import (
	"fmt"

	"github.com/Giulio2002/mapkv/engine"
)

// txn is a mapfile transaction. Reads see the snapshot taken at begin plus,
// for write transactions, the transaction's own buffered writes.
type txn struct {
	env    *Env
	gen    *generation
	snap   uint64
	write  bool
	locked bool // holds env.writer
	done   bool

	dirty   map[string][]byte
	keys    []string // dirty keys in first-write order
	pending int64    // bytes the dirty records will occupy
}

// OpenTable implements engine.Txn. Only the main table exists.
func (t *txn) OpenTable(name string, flags uint) (engine.Table, error) {
	if t.done {
		return 0, engine.NewError(engine.BadTxn)
	}
	if name != "" {
		return 0, engine.WrapError(engine.Incompatible, fmt.Errorf("named table %q not supported", name))
	}
	return MainTable, nil
}

// Get implements engine.Txn. Committed values are returned as views into
// the mapping and stay valid until the transaction ends.
func (t *txn) Get(table engine.Table, key []byte) ([]byte, error) {
	if t.done {
		return nil, engine.NewError(engine.BadTxn)
	}
	if table != MainTable {
		return nil, engine.NewError(engine.BadDBI)
	}
	if t.write {
		if v, ok := t.dirty[string(key)]; ok {
			return v, nil
		}
	}

	t.env.mu.RLock()
	r, ok := t.env.index.lookup(key, t.snap)
	t.env.mu.RUnlock()
	if !ok {
		return nil, engine.NewError(engine.NotFound)
	}
	start := r.valueOffset()
	end := start + int64(r.vlen)
	return t.gen.m.Data()[start:end:end], nil
}

// Put implements engine.Txn. The write is buffered until Commit; MapFull is
// reported here, when the buffered records would not fit the current map,
// and leaves the transaction usable.
func (t *txn) Put(table engine.Table, key, value []byte, flags uint) error {
	if t.done {
		return engine.NewError(engine.BadTxn)
	}
	if !t.write {
		return engine.WrapError(engine.Incompatible, fmt.Errorf("put in read-only transaction"))
	}
	if table != MainTable {
		return engine.NewError(engine.BadDBI)
	}
	if len(key) == 0 || len(key) > MaxKeySize || len(value) > MaxValSize {
		return engine.NewError(engine.BadValSize)
	}
	if flags&engine.NoOverwrite != 0 {
		if _, err := t.Get(table, key); err == nil {
			return engine.NewError(engine.KeyExist)
		}
	}

	k := string(key)
	old, had := t.dirty[k]
	delta := recordSize(key, value)
	if had {
		delta -= recordSize(key, old)
	}

	t.env.mu.RLock()
	closed := t.env.closed
	var capacity, used int64
	if !closed {
		capacity, used = t.env.cur.m.Size(), t.env.end
	}
	t.env.mu.RUnlock()
	if closed {
		return engine.NewError(engine.BadTxn)
	}
	if used+t.pending+delta > capacity {
		return engine.NewError(engine.MapFull)
	}

	if t.dirty == nil {
		t.dirty = make(map[string][]byte)
	}
	if !had {
		t.keys = append(t.keys, k)
	}
	t.dirty[k] = append(make([]byte, 0, len(value)), value...)
	t.pending += delta
	return nil
}

// Commit implements engine.Txn.
func (t *txn) Commit() error {
	if t.done {
		return engine.NewError(engine.BadTxn)
	}
	t.done = true
	defer t.env.release(t)

	if !t.write || len(t.keys) == 0 {
		return nil
	}
	return t.env.commit(t)
}

// Abort implements engine.Txn.
func (t *txn) Abort() {
	if t.done {
		return
	}
	t.done = true
	t.env.release(t)
}

var _ engine.Txn = (*txn)(nil)
