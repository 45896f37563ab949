package mdbx_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/Giulio2002/mapkv"
	"github.com/Giulio2002/mapkv/engine/mdbx"
)

func TestStoreGrowsMap(t *testing.T) {
	s := mapkv.New(mdbx.New("test"), &mapkv.Options{MapSize: mapkv.MiB})
	if err := s.Open(t.TempDir(), mapkv.DefaultFlags); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	value := bytes.Repeat([]byte{'v'}, 1024)
	const n = 4000
	for i := 0; i < n; i++ {
		if err := s.Put(nil, []byte(fmt.Sprintf("key%04d", i)), value); err != nil {
			t.Fatalf("Put %d failed: %v (open=%v)", i, err, s.IsOpen())
		}
	}
	if !s.IsOpen() {
		t.Fatal("store closed while growing")
	}
	if s.MapSize() <= mapkv.MiB {
		t.Errorf("map did not grow: %d", s.MapSize())
	}
	for _, i := range []int{0, n / 2, n - 1} {
		v, found, err := s.Get(nil, []byte(fmt.Sprintf("key%04d", i)))
		if err != nil || !found || !bytes.Equal(v, value) {
			t.Errorf("key%04d: found=%v err=%v", i, found, err)
		}
	}
}

func TestStoreGrowsMapInExplicitTxn(t *testing.T) {
	s := mapkv.New(mdbx.New("test"), &mapkv.Options{MapSize: mapkv.MiB})
	if err := s.Open(t.TempDir(), mapkv.DefaultFlags); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	txn, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	value := bytes.Repeat([]byte{'v'}, 1024)
	var perr error
	for i := 0; i < 4000 && perr == nil; i++ {
		perr = s.Put(txn, []byte(fmt.Sprintf("key%04d", i)), value)
	}
	// the caller's txn pins the current mapping, so it cannot be grown
	if !mapkv.IsStructural(perr) || s.IsOpen() {
		t.Fatalf("expected structural failure, got %v (open=%v)", perr, s.IsOpen())
	}
	s.Abort(txn)
}
