package mapfile

// ref locates a committed value inside the data file.
type ref struct {
	off  int64 // record offset
	klen uint32
	vlen uint32
}

func (r ref) valueOffset() int64 {
	return r.off + RecordHeaderSize + int64(r.klen)
}

// version is one committed value of a key. Older versions are kept while a
// transaction that can see them is alive.
type version struct {
	txnID uint64
	ref   ref
	prev  *version
}

// index maps keys to their version chains, newest first. It is not
// synchronized; Env guards it.
type index struct {
	keys map[string]*version
}

func newIndex() *index {
	return &index{keys: make(map[string]*version)}
}

// lookup returns the newest version of key visible at txnID.
func (ix *index) lookup(key []byte, txnID uint64) (ref, bool) {
	v := ix.keys[string(key)]
	for v != nil && v.txnID > txnID {
		v = v.prev
	}
	if v == nil {
		return ref{}, false
	}
	return v.ref, true
}

// publish installs the refs committed by txnID. Versions that no reader at
// or after oldest can reach are dropped.
func (ix *index) publish(refs map[string]ref, txnID, oldest uint64) {
	for k, r := range refs {
		v := &version{txnID: txnID, ref: r, prev: ix.keys[k]}
		ix.keys[k] = v
		trim(v, oldest)
	}
}

// trim cuts the chain below the first version visible at oldest.
func trim(v *version, oldest uint64) {
	for ; v != nil; v = v.prev {
		if v.txnID <= oldest {
			v.prev = nil
			return
		}
	}
}

func (ix *index) len() int {
	return len(ix.keys)
}
