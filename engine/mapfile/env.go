//go:build unix

package mapfile

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/Giulio2002/mapkv/engine"
	"github.com/Giulio2002/mapkv/internal/mmap"
	"github.com/gofrs/flock"
)

// minMapSize is the smallest map: the header plus one page of records.
var minMapSize = HeaderSize + mmap.PageSize()

// initialTxnID is the txnID of a freshly created file
const initialTxnID uint64 = 1

// Engine creates mapfile environments.
type Engine struct{}

// New returns the mapfile engine.
func New() *Engine {
	return &Engine{}
}

// Name implements engine.Engine.
func (*Engine) Name() string { return "mapfile" }

// CreateEnv implements engine.Engine.
func (*Engine) CreateEnv() (engine.Env, error) {
	return NewEnv(), nil
}

// generation is one mapping of the data file. Growing the map creates a new
// generation; a retired generation is unmapped when the last transaction
// that began on it ends.
type generation struct {
	m       *mmap.Map
	refs    int
	retired bool
}

// Env is a mapfile environment.
type Env struct {
	// writer serializes write transactions unless the env is opened with
	// engine.NoLock.
	writer sync.Mutex

	mu      sync.RWMutex // guards the fields below
	path    string
	flags   uint
	opened  bool
	closed  bool
	mapSize int64

	file    *os.File
	lock    *flock.Flock
	cur     *generation
	txnID   uint64
	end     int64
	index   *index
	readers map[uint64]int // live transactions by snapshot txnID
	live    int
	mapped  int // generations still mapped
}

// Info describes an open environment.
type Info struct {
	Path        string
	MapSize     int64
	Used        int64
	TxnID       uint64
	Entries     int
	LiveTxns    int
	Generations int
}

// NewEnv allocates an unopened environment.
func NewEnv() *Env {
	return &Env{
		mapSize: minMapSize,
		index:   newIndex(),
		readers: make(map[uint64]int),
	}
}

// SetMapSize implements engine.Env. Before Open it sets the initial
// capacity; afterwards it grows the file and maps a new generation. The map
// never shrinks.
func (e *Env) SetMapSize(size int64) error {
	if size <= 0 {
		return engine.NewError(engine.InvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.NewError(engine.Incompatible)
	}
	if !e.opened {
		e.mapSize = max(size, minMapSize)
		return nil
	}

	size = mmap.AlignSize(size)
	if size <= e.cur.m.Size() {
		return nil
	}
	if err := e.file.Truncate(size); err != nil {
		return engine.WrapError(engine.Problem, err)
	}
	m, err := e.mapFile(size)
	if err != nil {
		return err
	}
	e.retire(e.cur)
	e.cur = &generation{m: m}
	e.mapSize = size
	return nil
}

// MapSize implements engine.MapSizer.
func (e *Env) MapSize() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mapSize
}

// Open implements engine.Env. path is a directory; the data and lock files
// are created inside it.
func (e *Env) Open(path string, flags uint, mode os.FileMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.opened || e.closed {
		return engine.NewError(engine.Incompatible)
	}
	e.flags = flags

	if flags&engine.NoLock == 0 {
		lock := flock.New(filepath.Join(path, LockFileName))
		locked, err := lock.TryLock()
		if err != nil {
			return engine.WrapError(engine.Problem, err)
		}
		if !locked {
			return engine.NewError(engine.Busy)
		}
		e.lock = lock
	}

	if err := e.openFile(filepath.Join(path, DataFileName), mode); err != nil {
		e.closeFiles()
		return err
	}
	e.path = path
	e.opened = true
	return nil
}

func (e *Env) openFile(name string, mode os.FileMode) error {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, mode)
	if err != nil {
		return engine.WrapError(engine.Problem, err)
	}
	e.file = f

	fi, err := f.Stat()
	if err != nil {
		return engine.WrapError(engine.Problem, err)
	}
	fresh := fi.Size() == 0

	capacity := mmap.AlignSize(max(e.mapSize, fi.Size()))
	if fi.Size() < capacity {
		if err := f.Truncate(capacity); err != nil {
			return engine.WrapError(engine.Problem, err)
		}
	}
	m, err := e.mapFile(capacity)
	if err != nil {
		return err
	}
	e.cur = &generation{m: m}
	e.mapSize = capacity

	data := m.Data()
	head, ok := readMeta(data[:HeaderSize])
	if !ok {
		if !fresh {
			return engine.NewError(engine.Invalid)
		}
		head = meta{txnID: initialTxnID, end: HeaderSize, version: FormatVersion}
		off := metaOffset(head.txnID)
		head.encode(data[off : off+metaSize])
		if err := m.SyncRange(0, HeaderSize, false); err != nil {
			return engine.WrapError(engine.Problem, err)
		}
	}
	if err := checkVersion(head.version); err != nil {
		return err
	}

	err = scanRecords(data, head.end, func(off int64, key, value []byte) {
		e.index.keys[string(key)] = &version{
			txnID: head.txnID,
			ref:   ref{off: off, klen: uint32(len(key)), vlen: uint32(len(value))},
		}
	})
	if err != nil {
		return err
	}
	e.txnID = head.txnID
	e.end = head.end
	return nil
}

func (e *Env) mapFile(size int64) (*mmap.Map, error) {
	m, err := mmap.New(e.file, size)
	if err != nil {
		return nil, engine.WrapError(engine.Problem, err)
	}
	e.mapped++
	if e.flags&engine.NoReadAhead != 0 {
		// readahead is only a hint; failing to disable it is harmless
		_ = m.AdviseRandom()
	}
	return m, nil
}

// retire unmaps g once no transaction uses it. Caller holds e.mu.
func (e *Env) retire(g *generation) {
	if g == nil {
		return
	}
	g.retired = true
	if g.refs == 0 {
		e.unmap(g)
	}
}

func (e *Env) unmap(g *generation) {
	g.m.Close()
	e.mapped--
}

func (e *Env) closeFiles() error {
	e.retire(e.cur)
	e.cur = nil
	var errs []error
	if e.file != nil {
		errs = append(errs, e.file.Close())
		e.file = nil
	}
	if e.lock != nil {
		errs = append(errs, e.lock.Unlock())
		e.lock = nil
	}
	return errors.Join(errs...)
}

// BeginTxn implements engine.Env.
func (e *Env) BeginTxn(parent engine.Txn, flags uint) (engine.Txn, error) {
	if parent != nil {
		return nil, engine.NewError(engine.Incompatible)
	}
	write := flags&engine.TxnReadOnly == 0

	e.mu.RLock()
	usable := e.opened && !e.closed
	locking := e.flags&engine.NoLock == 0
	e.mu.RUnlock()
	if !usable {
		return nil, engine.NewError(engine.Incompatible)
	}

	if write && locking {
		e.writer.Lock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		if write && locking {
			e.writer.Unlock()
		}
		return nil, engine.NewError(engine.Incompatible)
	}
	g := e.cur
	g.refs++
	e.readers[e.txnID]++
	e.live++
	return &txn{env: e, gen: g, snap: e.txnID, write: write, locked: write && locking}, nil
}

// release ends t's claim on its generation and snapshot.
func (e *Env) release(t *txn) {
	e.mu.Lock()
	g := t.gen
	g.refs--
	if g.retired && g.refs == 0 {
		e.unmap(g)
	}
	if e.readers[t.snap]--; e.readers[t.snap] == 0 {
		delete(e.readers, t.snap)
	}
	e.live--
	e.mu.Unlock()

	if t.locked {
		e.writer.Unlock()
	}
}

// oldestReader is the smallest snapshot still in use. Caller holds e.mu.
func (e *Env) oldestReader() uint64 {
	oldest := e.txnID
	for snap := range e.readers {
		oldest = min(oldest, snap)
	}
	return oldest
}

// commit appends t's writes, flushes them, then publishes a new meta slot
// and index version.
func (e *Env) commit(t *txn) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.NewError(engine.BadTxn)
	}
	g := e.cur
	data := g.m.Data()
	start := e.end
	if start+t.pending > int64(len(data)) {
		return engine.NewError(engine.MapFull)
	}

	off := start
	refs := make(map[string]ref, len(t.keys))
	for _, k := range t.keys {
		key, value := []byte(k), t.dirty[k]
		putRecord(data[off:], key, value)
		refs[k] = ref{off: off, klen: uint32(len(key)), vlen: uint32(len(value))}
		off += recordSize(key, value)
	}
	if e.flags&engine.NoSync == 0 {
		if err := g.m.SyncRange(start, off-start, false); err != nil {
			return engine.WrapError(engine.Problem, err)
		}
	}

	head := meta{txnID: e.txnID + 1, end: off, version: FormatVersion}
	mo := metaOffset(head.txnID)
	head.encode(data[mo : mo+metaSize])
	if e.flags&engine.NoMetaSync == 0 {
		if err := g.m.SyncRange(mo, metaSize, false); err != nil {
			return engine.WrapError(engine.Problem, err)
		}
	}

	e.index.publish(refs, head.txnID, e.oldestReader())
	e.txnID = head.txnID
	e.end = off
	return nil
}

// CloseTable implements engine.Env. The main table needs no cleanup.
func (e *Env) CloseTable(engine.Table) {}

// Close implements engine.Env. Mappings still used by live transactions stay
// mapped until those transactions end.
func (e *Env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if !e.opened {
		return nil
	}
	if err := e.closeFiles(); err != nil {
		return engine.WrapError(engine.Problem, err)
	}
	return nil
}

// Info returns a snapshot of the environment's state.
func (e *Env) Info() Info {
	e.mu.RLock()
	defer e.mu.RUnlock()

	info := Info{
		Path:        e.path,
		MapSize:     e.mapSize,
		Used:        e.end,
		TxnID:       e.txnID,
		Entries:     e.index.len(),
		LiveTxns:    e.live,
		Generations: e.mapped,
	}
	return info
}

// Stat implements engine.Stater.
func (e *Env) Stat() engine.Stat {
	info := e.Info()
	return engine.Stat{
		Used:     info.Used,
		Entries:  info.Entries,
		TxnID:    info.TxnID,
		LiveTxns: info.LiveTxns,
	}
}

var (
	_ engine.Env      = (*Env)(nil)
	_ engine.MapSizer = (*Env)(nil)
	_ engine.Stater   = (*Env)(nil)
)
