//go:build rocksdb

package main

import (
	"github.com/Giulio2002/mapkv/engine"
	"github.com/Giulio2002/mapkv/engine/rocks"
)

func init() {
	engines["rocksdb"] = func() engine.Engine { return rocks.New() }
}
