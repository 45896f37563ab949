package mapkv

import "os"

// Options configures a Store. Zero fields take their defaults.
type Options struct {
	// MapSize is the initial map capacity in bytes.
	MapSize int64

	// Table names the single table the Store reads and writes. Empty is the
	// environment's main table.
	Table string

	// Mode is the permission for files created by the engine.
	Mode os.FileMode

	// Logger receives diagnostics. Nil discards them.
	Logger Logger
}

// DefaultOptions returns the options used when New is given nil.
func DefaultOptions() *Options {
	return &Options{
		MapSize: DefaultMapSize,
		Mode:    DefaultMode,
		Logger:  Discard,
	}
}

func (o *Options) withDefaults() Options {
	out := *DefaultOptions()
	if o == nil {
		return out
	}
	if o.MapSize > 0 {
		out.MapSize = o.MapSize
	}
	if o.Mode != 0 {
		out.Mode = o.Mode
	}
	if o.Logger != nil {
		out.Logger = o.Logger
	}
	out.Table = o.Table
	return out
}
