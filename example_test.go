//go:build unix

package mapkv_test

import (
	"fmt"
	"log"
	"os"

	"github.com/Giulio2002/mapkv"
	"github.com/Giulio2002/mapkv/engine/mapfile"
)

func Example() {
	dir, err := os.MkdirTemp("", "mapkv-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	s := mapkv.New(mapfile.New(), nil)
	if err := s.Open(dir, mapkv.DefaultFlags); err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	if err := s.Put(nil, []byte("hello"), []byte("world")); err != nil {
		log.Fatal(err)
	}

	txn, err := s.Begin()
	if err != nil {
		log.Fatal(err)
	}
	s.Put(txn, []byte("k1"), []byte("v1"))
	s.Put(txn, []byte("k2"), []byte("v2"))
	if err := s.Commit(txn); err != nil {
		log.Fatal(err)
	}

	for _, k := range []string{"hello", "k1", "k2", "k3"} {
		v, found, err := s.Get(nil, []byte(k))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s=%q found=%v\n", k, v, found)
	}
	// Output:
	// hello="world" found=true
	// k1="v1" found=true
	// k2="v2" found=true
	// k3="" found=false
}
