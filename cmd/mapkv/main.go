// Command mapkv reads and writes a mapkv database from the shell.
//
//	mapkv --path /tmp/db put hello world
//	mapkv --path /tmp/db get hello
//	mapkv --path /tmp/db batch k1=v1 k2=v2
//
// MAPKV_PATH and MAPKV_ENGINE set the defaults for --path and --engine.
package main

import (
	"os"

	. "github.com/stevegt/goadapt"
)

func main() {
	config := NewCliConfig()
	rc, err := Cli(os.Args[1:], config)
	if err != nil {
		Fpf(config.Stderr, "%s: %v\n", config.Name, err)
		if rc == 0 {
			rc = 1
		}
	}
	os.Exit(rc)
}
