package mapfile

import (
	"encoding/binary"

	"github.com/Giulio2002/mapkv/engine"
	"github.com/stevegt/semver"
	"github.com/zeebo/xxh3"
)

// File names
const (
	// DataFileName is the data file name in an environment directory
	DataFileName = "data.mkv"

	// LockFileName is the lock file name in an environment directory
	LockFileName = "lock.mkv"
)

// FormatVersion is the on-disk format written by this package. Files with
// a newer version are refused.
const FormatVersion = "1.0.0"

// Layout constants
const (
	// Magic identifies mapfile data files
	Magic uint64 = 0x4d4b56444154414d

	// HeaderSize is the size of the header area holding the meta slots
	HeaderSize = 4096

	// NumMetas is the number of meta slots (rotating)
	NumMetas = 2

	// metaSlotSize is the distance between meta slots
	metaSlotSize = HeaderSize / NumMetas

	// metaSize is the encoded size of one meta record
	metaSize = 48

	// RecordHeaderSize is the fixed record header size (16 bytes)
	RecordHeaderSize = 16

	// MaxKeySize is the largest accepted key, the same as MDBX with 4 KiB pages
	MaxKeySize = 2022

	// MaxValSize is the largest accepted value
	MaxValSize = 0x7fff0000

	// MainTable is the handle of the environment's only table
	MainTable engine.Table = 1
)

// meta is one meta slot. The slot with the highest valid txnID wins.
//
// Layout:
//
//	Offset  Size  Field
//	0       8     magic
//	8       8     txnID
//	16      8     end (first byte after the last committed record)
//	24      16    format version, NUL padded
//	40      8     xxh3 of bytes [0, 40)
type meta struct {
	txnID   uint64
	end     int64
	version string
}

func (m *meta) encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:], Magic)
	binary.LittleEndian.PutUint64(buf[8:], m.txnID)
	binary.LittleEndian.PutUint64(buf[16:], uint64(m.end))
	clear(buf[24:40])
	copy(buf[24:40], m.version)
	binary.LittleEndian.PutUint64(buf[40:], xxh3.Hash(buf[:40]))
}

// decodeMeta returns false if the slot is empty or damaged.
func decodeMeta(buf []byte) (meta, bool) {
	if binary.LittleEndian.Uint64(buf[0:]) != Magic {
		return meta{}, false
	}
	if binary.LittleEndian.Uint64(buf[40:]) != xxh3.Hash(buf[:40]) {
		return meta{}, false
	}
	v := buf[24:40]
	n := 0
	for n < len(v) && v[n] != 0 {
		n++
	}
	return meta{
		txnID:   binary.LittleEndian.Uint64(buf[8:]),
		end:     int64(binary.LittleEndian.Uint64(buf[16:])),
		version: string(v[:n]),
	}, true
}

// readMeta picks the newest valid meta slot. ok is false when no slot is
// valid, which for a zeroed header means a fresh file.
func readMeta(header []byte) (m meta, ok bool) {
	for i := 0; i < NumMetas; i++ {
		slot := header[i*metaSlotSize : i*metaSlotSize+metaSize]
		if cand, valid := decodeMeta(slot); valid && (!ok || cand.txnID > m.txnID) {
			m, ok = cand, true
		}
	}
	return m, ok
}

// metaOffset is where the meta for txnID is written.
func metaOffset(txnID uint64) int64 {
	return int64(txnID%NumMetas) * metaSlotSize
}

// checkVersion refuses files written by a newer format.
func checkVersion(v string) error {
	onDisk, err := semver.Parse([]byte(v))
	if err != nil {
		return engine.WrapError(engine.Invalid, err)
	}
	ours, err := semver.Parse([]byte(FormatVersion))
	if err != nil {
		return engine.WrapError(engine.Problem, err)
	}
	if semver.Cmp(onDisk, ours) > 0 {
		return engine.NewError(engine.VersionMismatch)
	}
	return nil
}

// Record layout:
//
//	Offset  Size  Field
//	0       4     key length
//	4       4     value length
//	8       8     xxh3 of key||value
//	16      k     key
//	16+k    v     value
func recordSize(key, value []byte) int64 {
	return RecordHeaderSize + int64(len(key)) + int64(len(value))
}

func recordSum(key, value []byte) uint64 {
	h := xxh3.New()
	h.Write(key)
	h.Write(value)
	return h.Sum64()
}

func putRecord(buf []byte, key, value []byte) {
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(key)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(value)))
	binary.LittleEndian.PutUint64(buf[8:], recordSum(key, value))
	copy(buf[RecordHeaderSize:], key)
	copy(buf[RecordHeaderSize+len(key):], value)
}

// scanRecords walks the records in data[HeaderSize:end], verifying
// checksums, and calls fn with each record's offset, key and value.
func scanRecords(data []byte, end int64, fn func(off int64, key, value []byte)) error {
	if end < HeaderSize || end > int64(len(data)) {
		return engine.NewError(engine.Corrupted)
	}
	off := int64(HeaderSize)
	for off < end {
		if end-off < RecordHeaderSize {
			return engine.NewError(engine.Corrupted)
		}
		klen := int64(binary.LittleEndian.Uint32(data[off:]))
		vlen := int64(binary.LittleEndian.Uint32(data[off+4:]))
		sum := binary.LittleEndian.Uint64(data[off+8:])
		next := off + RecordHeaderSize + klen + vlen
		if next > end {
			return engine.NewError(engine.Corrupted)
		}
		key := data[off+RecordHeaderSize : off+RecordHeaderSize+klen]
		value := data[off+RecordHeaderSize+klen : next]
		if recordSum(key, value) != sum {
			return engine.NewError(engine.Corrupted)
		}
		fn(off, key, value)
		off = next
	}
	return nil
}
