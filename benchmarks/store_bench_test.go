//go:build unix

// Package benchmarks compares Store operations across engine backends.
package benchmarks

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/Giulio2002/mapkv"
	"github.com/Giulio2002/mapkv/engine"
	"github.com/Giulio2002/mapkv/engine/bolt"
	"github.com/Giulio2002/mapkv/engine/mapfile"
	"github.com/Giulio2002/mapkv/engine/mdbx"
)

var backends = []struct {
	name      string
	newEngine func() engine.Engine
}{
	{"mapfile", func() engine.Engine { return mapfile.New() }},
	{"mdbx", func() engine.Engine { return mdbx.New("bench") }},
	{"bolt", func() engine.Engine { return bolt.New() }},
}

func openStore(b *testing.B, eng engine.Engine) *mapkv.Store {
	b.Helper()
	s := mapkv.New(eng, &mapkv.Options{MapSize: 256 * mapkv.MiB})
	if err := s.Open(b.TempDir(), mapkv.DefaultFlags); err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { s.Close() })
	return s
}

// populate writes numKeys 8-byte keys with 32-byte values in one transaction.
func populate(b *testing.B, s *mapkv.Store, numKeys int) {
	b.Helper()
	txn, err := s.Begin()
	if err != nil {
		b.Fatal(err)
	}
	key := make([]byte, 8)
	val := make([]byte, 32)
	for i := 0; i < numKeys; i++ {
		binary.BigEndian.PutUint64(key, uint64(i))
		binary.BigEndian.PutUint64(val, uint64(i))
		if err := s.Put(txn, key, val); err != nil {
			s.Abort(txn)
			b.Fatal(err)
		}
	}
	if err := s.Commit(txn); err != nil {
		b.Fatal(err)
	}
}

// BenchmarkImplicitPut measures Put with a private transaction per call.
func BenchmarkImplicitPut(b *testing.B) {
	for _, be := range backends {
		b.Run(be.name, func(b *testing.B) {
			s := openStore(b, be.newEngine())
			key := make([]byte, 8)
			val := make([]byte, 32)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				binary.BigEndian.PutUint64(key, uint64(i%10_000))
				binary.BigEndian.PutUint64(val, uint64(i))
				if err := s.Put(nil, key, val); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkBatchPut measures Put inside one explicit transaction.
func BenchmarkBatchPut(b *testing.B) {
	for _, be := range backends {
		b.Run(be.name, func(b *testing.B) {
			s := openStore(b, be.newEngine())
			key := make([]byte, 8)
			val := make([]byte, 32)

			txn, err := s.Begin()
			if err != nil {
				b.Fatal(err)
			}
			defer s.Abort(txn)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				binary.BigEndian.PutUint64(key, uint64(i%100_000))
				binary.BigEndian.PutUint64(val, uint64(i))
				if err := s.Put(txn, key, val); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkGet measures random reads on a populated store, with and
// without an explicit transaction.
func BenchmarkGet(b *testing.B) {
	sizes := []int{10_000, 100_000}

	for _, size := range sizes {
		for _, be := range backends {
			b.Run(fmt.Sprintf("%d/%s/implicit", size, be.name), func(b *testing.B) {
				s := openStore(b, be.newEngine())
				populate(b, s, size)
				benchGet(b, s, nil, size)
			})
			b.Run(fmt.Sprintf("%d/%s/explicit", size, be.name), func(b *testing.B) {
				s := openStore(b, be.newEngine())
				populate(b, s, size)
				txn, err := s.Begin()
				if err != nil {
					b.Fatal(err)
				}
				defer s.Abort(txn)
				benchGet(b, s, txn, size)
			})
		}
	}
}

func benchGet(b *testing.B, s *mapkv.Store, txn *mapkv.Txn, numKeys int) {
	key := make([]byte, 8)

	// Pre-generate a shuffled order
	order := make([]int, numKeys)
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i > 0; i-- {
		j := int(uint64(i*17+31) % uint64(i+1))
		order[i], order[j] = order[j], order[i]
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		binary.BigEndian.PutUint64(key, uint64(order[i%numKeys]))
		if _, found, err := s.Get(txn, key); err != nil || !found {
			b.Fatalf("get %d: found=%v err=%v", order[i%numKeys], found, err)
		}
	}
}
