package mapfile

import (
	"testing"

	"github.com/Giulio2002/mapkv/engine"
)

func TestMetaRotation(t *testing.T) {
	header := make([]byte, HeaderSize)
	if _, ok := readMeta(header); ok {
		t.Fatal("zeroed header has a valid meta")
	}

	for id := uint64(1); id <= 4; id++ {
		m := meta{txnID: id, end: HeaderSize + int64(id)*100, version: FormatVersion}
		off := metaOffset(id)
		m.encode(header[off : off+metaSize])

		got, ok := readMeta(header)
		if !ok || got != m {
			t.Fatalf("after txn %d: got %+v, %v", id, got, ok)
		}
	}

	// Tear the newest slot; the previous commit wins.
	off := metaOffset(4)
	header[off+10] ^= 0xff
	got, ok := readMeta(header)
	if !ok || got.txnID != 3 {
		t.Errorf("torn meta: got %+v, %v; want txn 3", got, ok)
	}
}

func TestCheckVersion(t *testing.T) {
	if err := checkVersion(FormatVersion); err != nil {
		t.Errorf("current version refused: %v", err)
	}
	if err := checkVersion("0.9.0"); err != nil {
		t.Errorf("older version refused: %v", err)
	}
	if err := checkVersion("2.0.0"); engine.Code(err) != engine.VersionMismatch {
		t.Errorf("newer version: expected VersionMismatch, got %v", err)
	}
}

func TestScanRecords(t *testing.T) {
	data := make([]byte, 2*HeaderSize)
	off := int64(HeaderSize)
	pairs := [][2]string{{"a", "1"}, {"bb", ""}, {"ccc", "333"}}
	for _, p := range pairs {
		putRecord(data[off:], []byte(p[0]), []byte(p[1]))
		off += recordSize([]byte(p[0]), []byte(p[1]))
	}

	var seen []string
	err := scanRecords(data, off, func(_ int64, key, value []byte) {
		seen = append(seen, string(key)+"="+string(value))
	})
	if err != nil {
		t.Fatalf("scanRecords failed: %v", err)
	}
	if len(seen) != 3 || seen[0] != "a=1" || seen[1] != "bb=" || seen[2] != "ccc=333" {
		t.Errorf("got %v", seen)
	}

	// an end that cuts a record in half
	if err := scanRecords(data, off-1, func(int64, []byte, []byte) {}); engine.Code(err) != engine.Corrupted {
		t.Errorf("truncated end: expected Corrupted, got %v", err)
	}
	if err := scanRecords(data, int64(len(data))+1, func(int64, []byte, []byte) {}); engine.Code(err) != engine.Corrupted {
		t.Errorf("end past data: expected Corrupted, got %v", err)
	}
}

func TestIndexVersions(t *testing.T) {
	ix := newIndex()
	ix.publish(map[string]ref{"k": {off: 100}}, 2, 2)
	ix.publish(map[string]ref{"k": {off: 200}}, 3, 2)
	ix.publish(map[string]ref{"k": {off: 300}, "j": {off: 400}}, 4, 2)

	for _, tt := range []struct {
		txnID uint64
		off   int64
		ok    bool
	}{
		{1, 0, false},
		{2, 100, true},
		{3, 200, true},
		{4, 300, true},
	} {
		r, ok := ix.lookup([]byte("k"), tt.txnID)
		if ok != tt.ok || r.off != tt.off {
			t.Errorf("lookup at %d: got %d, %v; want %d, %v", tt.txnID, r.off, ok, tt.off, tt.ok)
		}
	}
	if _, ok := ix.lookup([]byte("j"), 3); ok {
		t.Error("j visible before it was committed")
	}

	// with no reader older than 4, the chain collapses to one version
	ix.publish(map[string]ref{"k": {off: 500}}, 5, 5)
	if v := ix.keys["k"]; v.prev != nil {
		t.Errorf("chain not trimmed: %+v", v.prev)
	}
	if ix.len() != 2 {
		t.Errorf("len: got %d", ix.len())
	}
}
