package main

import (
	"github.com/Giulio2002/mapkv/engine"
	"github.com/Giulio2002/mapkv/engine/bolt"
	"github.com/Giulio2002/mapkv/engine/mdbx"
)

func init() {
	engines["mdbx"] = func() engine.Engine { return mdbx.New("mapkv") }
	engines["bolt"] = func() engine.Engine { return bolt.New() }
}
