//go:build unix

package main

import (
	"github.com/Giulio2002/mapkv/engine"
	"github.com/Giulio2002/mapkv/engine/mapfile"
)

func init() {
	engines["mapfile"] = func() engine.Engine { return mapfile.New() }
}
