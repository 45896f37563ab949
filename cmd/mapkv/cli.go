package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/stevegt/envi"
	. "github.com/stevegt/goadapt"

	"github.com/Giulio2002/mapkv"
	"github.com/Giulio2002/mapkv/engine"
)

// engines maps --engine names to constructors. Backends register
// themselves from build-tagged files.
var engines = map[string]func() engine.Engine{}

type cli struct {
	Path    string `short:"p" default:"${path}" help:"Database directory (env MAPKV_PATH)."`
	Engine  string `short:"e" default:"${engine}" help:"Backend: ${engines} (env MAPKV_ENGINE)."`
	MapSize int64  `default:"${mapsize}" help:"Initial map capacity in bytes."`
	Durable bool   `help:"Flush every commit instead of the fast unsafe defaults."`
	Verbose bool   `short:"v" help:"Log store diagnostics on stderr."`

	Put struct {
		Key   string `arg:"" help:"Key to write."`
		Value string `arg:"" help:"Value to write."`
	} `cmd:"" help:"Write one key in its own transaction."`
	Get struct {
		Key string `arg:"" help:"Key to read."`
	} `cmd:"" help:"Print the value stored under a key."`
	Batch struct {
		Pairs []string `arg:"" help:"key=value pairs written in one transaction."`
		Abort bool     `help:"Abort the transaction instead of committing it."`
	} `cmd:"" help:"Write several keys in one explicit transaction."`
	Info    struct{} `cmd:"" help:"Show store configuration."`
	Version struct{} `cmd:"" help:"Show the mapkv version."`
}

// CliConfig holds the CLI's process bindings.
type CliConfig struct {
	Name        string
	Description string
	Exit        func(int)
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
}

// NewCliConfig returns the configuration used by main.
func NewCliConfig() *CliConfig {
	return &CliConfig{
		Name:        "mapkv",
		Description: "Read and write a mapkv database.",
		Exit:        os.Exit,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

func engineNames() string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Cli parses args and executes the selected subcommand. rc is the process
// exit code.
func Cli(args []string, config *CliConfig) (rc int, err error) {
	defer Return(&err)

	var c cli
	parser, err := kong.New(&c,
		kong.Name(config.Name),
		kong.Description(config.Description),
		kong.Exit(config.Exit),
		kong.Writers(config.Stdout, config.Stderr),
		kong.Vars{
			"path":    envi.String("MAPKV_PATH", "mapkv-data"),
			"engine":  envi.String("MAPKV_ENGINE", "mapfile"),
			"engines": engineNames(),
			"mapsize": fmt.Sprint(mapkv.DefaultMapSize),
		},
	)
	Ck(err)
	ctx, err := parser.Parse(args)
	if err != nil {
		Fpf(config.Stderr, "%s: %v\n", config.Name, err)
		return 2, nil
	}

	cmd := ctx.Command()
	if cmd == "version" {
		bi := mapkv.GetBuildInfo()
		Fpf(config.Stdout, "%s %s (%s %s)\n", config.Name, bi.Version, bi.Compiler, bi.Target)
		return 0, nil
	}

	newEngine, ok := engines[c.Engine]
	if !ok {
		Fpf(config.Stderr, "%s: unknown engine %q (have %s)\n", config.Name, c.Engine, engineNames())
		return 2, nil
	}

	level := mapkv.LevelWarn
	if c.Verbose {
		level = mapkv.LevelDebug
	}
	flags := mapkv.DefaultFlags
	if c.Durable {
		flags = 0
	}

	s := mapkv.New(newEngine(), &mapkv.Options{
		MapSize: c.MapSize,
		Logger:  mapkv.NewLoggerWithWriter(config.Stderr, level),
	})
	err = s.Open(c.Path, flags)
	Ck(err)
	defer func() {
		cerr := s.Close()
		if err == nil {
			err = cerr
		}
	}()

	switch cmd {
	case "put <key> <value>":
		err = s.Put(nil, []byte(c.Put.Key), []byte(c.Put.Value))
		Ck(err)
	case "get <key>":
		value, found, err := s.Get(nil, []byte(c.Get.Key))
		Ck(err)
		if !found {
			Fpf(config.Stderr, "%s: key %q not found\n", config.Name, c.Get.Key)
			return 1, nil
		}
		Fpf(config.Stdout, "%s\n", value)
	case "batch <pairs>":
		return batch(s, c.Batch.Pairs, c.Batch.Abort, config)
	case "info":
		Fpf(config.Stdout, "engine:  %s\n", s.Engine())
		Fpf(config.Stdout, "path:    %s\n", s.Path())
		Fpf(config.Stdout, "flags:   %s\n", s.Flags())
		Fpf(config.Stdout, "mapsize: %d\n", s.MapSize())
		if st, ok := s.Stat(); ok {
			Fpf(config.Stdout, "used:    %d\n", st.Used)
			Fpf(config.Stdout, "entries: %d\n", st.Entries)
			Fpf(config.Stdout, "txnid:   %d\n", st.TxnID)
		}
	default:
		Fpf(config.Stderr, "%s: unhandled command %q\n", config.Name, cmd)
		return 2, nil
	}
	return 0, nil
}

func batch(s *mapkv.Store, pairs []string, abort bool, config *CliConfig) (rc int, err error) {
	defer Return(&err)

	type kv struct{ key, value string }
	writes := make([]kv, 0, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			Fpf(config.Stderr, "%s: bad pair %q, want key=value\n", config.Name, pair)
			return 2, nil
		}
		writes = append(writes, kv{key, value})
	}

	txn, err := s.Begin()
	Ck(err)
	for _, w := range writes {
		if err = s.Put(txn, []byte(w.key), []byte(w.value)); err != nil {
			s.Abort(txn)
			return 1, err
		}
	}
	if abort {
		s.Abort(txn)
		Fpf(config.Stdout, "aborted %d writes\n", len(writes))
		return 0, nil
	}
	err = s.Commit(txn)
	Ck(err)
	Fpf(config.Stdout, "committed %d writes\n", len(writes))
	return 0, nil
}
